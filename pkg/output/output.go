package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	json "github.com/json-iterator/go"
	"github.com/studyhub/studyfeed/pkg/config"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatTable OutputFormat = "table"
	FormatText  OutputFormat = "text"
)

// Writer is where every Print* function writes. Tests swap it.
var Writer io.Writer = color.Output

// GetOutputFormat returns the configured output format
func GetOutputFormat() OutputFormat {
	switch config.GetString("output.format") {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// ValidateOutputFormat checks if format is valid
func ValidateOutputFormat(format string) bool {
	return format == "json" || format == "table" || format == "text"
}

// Print outputs data in the configured format with optional title
func Print(title string, data interface{}) error {
	if GetOutputFormat() == FormatJSON {
		return printJSON(data)
	}
	return printText(title, data)
}

// PrintList outputs rows with headers; JSON format prints items instead.
func PrintList(title string, items interface{}, columns []string, rows [][]string) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return printJSON(items)
	default:
		if title != "" {
			color.New(color.Bold).Fprintf(Writer, "%s\n", title)
		}
		PrintTable(columns, rows)
		return nil
	}
}

// PrintRecord outputs a single record in the configured format
func PrintRecord(title string, record map[string]interface{}) error {
	switch GetOutputFormat() {
	case FormatJSON:
		return printJSON(record)
	case FormatTable:
		rows := make([][]string, 0, len(record))
		for _, k := range sortedKeys(record) {
			rows = append(rows, []string{k, fmt.Sprintf("%v", record[k])})
		}
		PrintTable([]string{"Field", "Value"}, rows)
		return nil
	default:
		if title != "" {
			fmt.Fprintf(Writer, "%s:\n", title)
		}
		bold := color.New(color.Bold)
		for _, k := range sortedKeys(record) {
			bold.Fprint(Writer, k+": ")
			fmt.Fprintf(Writer, "%v\n", record[k])
		}
		return nil
	}
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(Writer, msg+"\n", args...)
}

// PrintError prints an error message
func PrintError(msg string, args ...interface{}) {
	color.New(color.FgRed).Fprintf(Writer, "Error: "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	color.New(color.FgCyan).Fprintf(Writer, msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(Writer, "Warning: "+msg+"\n", args...)
}

// PrintRaw writes pre-rendered text
func PrintRaw(s string) {
	fmt.Fprintln(Writer, s)
}

// PrintTable prints aligned columns with a bold header row
func PrintTable(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(Writer, 0, 0, 2, ' ', 0)
	bold := color.New(color.Bold)

	for i, h := range headers {
		bold.Fprint(w, h)
		if i < len(headers)-1 {
			fmt.Fprint(w, "\t")
		}
	}
	fmt.Fprintln(w)

	for _, row := range rows {
		for i, cell := range row {
			fmt.Fprint(w, cell)
			if i < len(row)-1 {
				fmt.Fprint(w, "\t")
			}
		}
		fmt.Fprintln(w)
	}

	w.Flush()
}

func printJSON(data interface{}) error {
	s, err := FormatAsPrettyJSON(data)
	if err != nil {
		return err
	}
	fmt.Fprintln(Writer, s)
	return nil
}

func printText(title string, data interface{}) error {
	if title != "" {
		fmt.Fprintf(Writer, "%s:\n", title)
	}
	return printJSON(data)
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatAsJSON converts data to a compact JSON string
func FormatAsJSON(data interface{}) (string, error) {
	b, err := json.ConfigCompatibleWithStandardLibrary.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatAsPrettyJSON converts data to an indented JSON string
func FormatAsPrettyJSON(data interface{}) (string, error) {
	b, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
