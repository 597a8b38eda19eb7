// Package color holds the lipgloss palette and styles shared by bento's
// terminal output.
//
// Colors are adaptive: each entry has a light and a dark variant and lipgloss
// picks one based on the detected (or Initialize-d) terminal background.
// Setting NO_COLOR disables styling entirely.
//
// # Usage Example
//
//	color.Initialize(lipgloss.HasDarkBackground())
//	fmt.Println(color.OKStyle.Render("ports are free"))
//	fmt.Println(color.ErrorStyle.Render("port 8020 is in use"))
package color
