package report

// Document identifies a written report (a spreadsheet or a local file).
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}
