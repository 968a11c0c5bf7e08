package services

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Ananth-NQI/agrobot-backend/internal/models"
)

// ConsoleMessenger prints outbound messages, for the simulate command.
type ConsoleMessenger struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleMessenger(out io.Writer) *ConsoleMessenger {
	return &ConsoleMessenger{out: out}
}

func (c *ConsoleMessenger) print(format string, args ...any) models.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, "🤖 "+format+"\n\n", args...); err != nil {
		return models.Failed("console", err)
	}
	return models.Succeeded("console")
}

func (c *ConsoleMessenger) SendText(_ context.Context, _, body string) models.Outcome {
	return c.print("%s", body)
}

func (c *ConsoleMessenger) SendMenu(_ context.Context, _ string, menu models.Menu) models.Outcome {
	return c.print("%s", RenderMenuText(menu))
}

func (c *ConsoleMessenger) SendImage(_ context.Context, _, mediaURL, caption string) models.Outcome {
	return c.print("[imagen] %s\n%s", mediaURL, caption)
}

func (c *ConsoleMessenger) SendDocument(_ context.Context, _, mediaURL, caption string) models.Outcome {
	return c.print("[documento] %s\n%s", mediaURL, caption)
}
