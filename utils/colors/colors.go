package colors

import (
	"github.com/fatih/color"
)

var (
	// Red color for errors
	Red = color.New(color.FgRed).SprintFunc()

	// Green color for success
	Green = color.New(color.FgGreen).SprintFunc()

	// Yellow color for warnings
	Yellow = color.New(color.FgYellow).SprintFunc()

	// Blue color for info
	Blue = color.New(color.FgBlue).SprintFunc()

	// Cyan color for in-progress states
	Cyan = color.New(color.FgCyan).SprintFunc()

	// YellowBold marks states that need operator attention
	YellowBold = color.New(color.FgYellow, color.Bold).SprintFunc()
)

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	color.Green("✓ %s", msg)
}

// PrintError prints an error message
func PrintError(msg string) {
	color.Red("✗ %s", msg)
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	color.Yellow("⚠ %s", msg)
}

// PrintInfo prints an info message
func PrintInfo(msg string) {
	color.Blue("▶ %s", msg)
}

// DisableColor disables colored output
func DisableColor() {
	color.NoColor = true
}
