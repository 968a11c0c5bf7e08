package main

import "github.com/Ananth-NQI/agrobot-backend/internal/cli"

func main() {
	cli.Execute()
}
