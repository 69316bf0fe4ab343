package schoolapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/classpilot/tool-runtime/internal/toolerr"
	"github.com/classpilot/tool-runtime/internal/tools"
)

// FailureResult is what the model sees when a records call fails. The tools
// never let an error escape their boundary; a broken backend must not break
// the model's turn.
const FailureResult = "error"

type recordsFetcher interface {
	Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error)
}

// recordTool is the shared shape of the domain tools: one GET against the
// records service, optional id filters, body echoed back as a string.
type recordTool struct {
	name        string
	description string
	schema      string
	path        string
	filters     []string
	fetcher     recordsFetcher
	logger      *slog.Logger
}

func (t *recordTool) Name() string             { return t.name }
func (t *recordTool) Description() string      { return t.description }
func (t *recordTool) ParametersSchema() string { return t.schema }

func (t *recordTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var decoded map[string]any
	if err := tools.DecodeArgs(args, &decoded); err != nil {
		return "", err
	}

	query := url.Values{}
	for _, filter := range t.filters {
		if value := idListArg(decoded, filter); value != "" {
			query.Set(filter, value)
		}
	}

	body, err := t.fetcher.Get(ctx, t.path, query)
	if err != nil {
		t.logger.Error("records tool degraded to failure result", "tool", t.name, "error", err)
		return FailureResult, nil
	}
	return string(body), nil
}

// idListArg renders a filter argument as the comma-separated id list the
// records service expects. Accepts a string, a number, or an array of either.
func idListArg(args map[string]any, key string) string {
	raw, ok := args[key]
	if !ok {
		return ""
	}
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			if part := idListArg(map[string]any{key: item}, key); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// NewTools builds the school records tool set. All of them auto-execute:
// they are read-only lookups.
func NewTools(fetcher recordsFetcher, logger *slog.Logger) []tools.Tool {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "schoolapi")

	return []tools.Tool{
		&recordTool{
			name:        "fetch_classes",
			description: "Fetch school classes, optionally filtered by comma-separated class ids.",
			schema:      `{"classIds": "optional comma-separated class ids"}`,
			path:        "classes",
			filters:     []string{"classIds"},
			fetcher:     fetcher,
			logger:      logger,
		},
		&recordTool{
			name:        "fetch_subjects",
			description: "Fetch subjects, optionally filtered by comma-separated subject ids.",
			schema:      `{"subjectIds": "optional comma-separated subject ids"}`,
			path:        "subjects",
			filters:     []string{"subjectIds"},
			fetcher:     fetcher,
			logger:      logger,
		},
		&recordTool{
			name:        "fetch_schools",
			description: "Fetch schools, optionally filtered by comma-separated school ids.",
			schema:      `{"schoolIds": "optional comma-separated school ids"}`,
			path:        "schools",
			filters:     []string{"schoolIds"},
			fetcher:     fetcher,
			logger:      logger,
		},
		&recordTool{
			name:        "fetch_students",
			description: "Fetch students, optionally filtered by comma-separated class or school ids.",
			schema:      `{"classIds": "optional comma-separated class ids", "schoolIds": "optional comma-separated school ids"}`,
			path:        "students",
			filters:     []string{"classIds", "schoolIds"},
			fetcher:     fetcher,
			logger:      logger,
		},
		newSearchStudentsTool(fetcher, logger),
		newStudentDetailTool(fetcher, logger),
	}
}

// searchStudentsTool requires a non-empty query; everything else follows the
// shared record-tool shape.
type searchStudentsTool struct {
	fetcher recordsFetcher
	logger  *slog.Logger
}

func newSearchStudentsTool(fetcher recordsFetcher, logger *slog.Logger) *searchStudentsTool {
	return &searchStudentsTool{fetcher: fetcher, logger: logger}
}

func (t *searchStudentsTool) Name() string { return "search_students" }

func (t *searchStudentsTool) Description() string {
	return "Search students by name or matriculation number."
}

func (t *searchStudentsTool) ParametersSchema() string {
	return `{"query": "search term, required"}`
}

func (t *searchStudentsTool) ValidateArgs(args json.RawMessage) error {
	decoded, err := decodeSearchArgs(args)
	if err != nil {
		return err
	}
	return decoded.check()
}

func (t *searchStudentsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	decoded, err := decodeSearchArgs(args)
	if err != nil {
		return "", err
	}
	if err := decoded.check(); err != nil {
		return "", err
	}

	query := url.Values{}
	query.Set("query", strings.TrimSpace(decoded.Query))
	body, err := t.fetcher.Get(ctx, "students/search", query)
	if err != nil {
		t.logger.Error("records tool degraded to failure result", "tool", t.Name(), "error", err)
		return FailureResult, nil
	}
	return string(body), nil
}

// studentDetailTool looks up one student by id; the id is required.
type studentDetailTool struct {
	fetcher recordsFetcher
	logger  *slog.Logger
}

func newStudentDetailTool(fetcher recordsFetcher, logger *slog.Logger) *studentDetailTool {
	return &studentDetailTool{fetcher: fetcher, logger: logger}
}

func (t *studentDetailTool) Name() string { return "student_detail" }

func (t *studentDetailTool) Description() string {
	return "Fetch the full record of a single student by id."
}

func (t *studentDetailTool) ParametersSchema() string {
	return `{"studentId": "student id, required"}`
}

func (t *studentDetailTool) ValidateArgs(args json.RawMessage) error {
	decoded, err := decodeDetailArgs(args)
	if err != nil {
		return err
	}
	return decoded.check()
}

func (t *studentDetailTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	decoded, err := decodeDetailArgs(args)
	if err != nil {
		return "", err
	}
	if err := decoded.check(); err != nil {
		return "", err
	}

	body, err := t.fetcher.Get(ctx, "students/"+url.PathEscape(strings.TrimSpace(decoded.StudentID)), nil)
	if err != nil {
		t.logger.Error("records tool degraded to failure result", "tool", t.Name(), "error", err)
		return FailureResult, nil
	}
	return string(body), nil
}

type searchArgs struct {
	Query string `json:"query"`
}

func decodeSearchArgs(args json.RawMessage) (searchArgs, error) {
	var decoded searchArgs
	err := tools.DecodeArgs(args, &decoded)
	return decoded, err
}

func (a searchArgs) check() error {
	if strings.TrimSpace(a.Query) == "" {
		return toolerr.NewValidation("query", "is required")
	}
	return nil
}

type detailArgs struct {
	StudentID string `json:"studentId"`
}

func decodeDetailArgs(args json.RawMessage) (detailArgs, error) {
	var decoded detailArgs
	err := tools.DecodeArgs(args, &decoded)
	return decoded, err
}

func (a detailArgs) check() error {
	if strings.TrimSpace(a.StudentID) == "" {
		return toolerr.NewValidation("studentId", "is required")
	}
	return nil
}
