package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"zing/internal/models"

	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // lookups that found nothing, invalid arguments
	ExitCommandError = 2 // unreachable database, failed migration
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// CLIResponse is the JSON envelope for command output.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
}

// OutputFormatter writes command results in the selected format.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Success writes data. In text mode lines is printed instead.
func (f *OutputFormatter) Success(data interface{}, lines ...string) error {
	resp := CLIResponse{Status: "ok", Data: data}
	switch f.Format {
	case "json":
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "yaml":
		// Round-trip through JSON so YAML keys match the json tags.
		raw, err := json.Marshal(resp)
		if err != nil {
			return err
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(f.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(f.Writer, line); err != nil {
			return err
		}
	}
	return nil
}

func postLines(posts []*models.Post) []string {
	if len(posts) == 0 {
		return []string{"(no posts)"}
	}
	lines := make([]string, 0, len(posts))
	for _, p := range posts {
		lines = append(lines, postLine(p))
	}
	return lines
}

func postLine(p *models.Post) string {
	author := p.AuthorID
	if p.Author != nil {
		author = "@" + p.Author.Username
	}
	content := p.Content
	if p.IsRepost && p.Original != nil {
		content = "repost: " + p.Original.Content
	}
	return fmt.Sprintf("%s  %-16s  %s  (likes %d, replies %d, reposts %d)",
		p.ID, author, oneLine(content), p.LikeCount, p.ReplyCount, p.RepostCount)
}

func notificationLines(list []*models.Notification) []string {
	if len(list) == 0 {
		return []string{"(no notifications)"}
	}
	lines := make([]string, 0, len(list))
	for _, n := range list {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		lines = append(lines, fmt.Sprintf("%s %s  %-8s  %s", mark, n.CreatedAt.Format("2006-01-02 15:04"), n.Type, n.Message))
	}
	return lines
}

func countLines(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, fmt.Sprintf("%-8s %d", k, counts[k]))
	}
	return lines
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
