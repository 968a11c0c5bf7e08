package models

// MenuOption is one selectable entry of a button list
type MenuOption struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Menu is an interactive prompt. Name identifies the content template used to render it.
type Menu struct {
	Name     string       `json:"name"`
	Body     string       `json:"body"`
	Options  []MenuOption `json:"options"`
	Numbered bool         `json:"numbered"` // text fallback lists options as 1., 2., ...
}
