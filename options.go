package xlscope

import (
	"log/slog"
	"maps"
	"slices"

	"golang.org/x/text/language"
)

// Options holds workbook and evaluation configuration.
type Options struct {
	globals       map[string]any
	evaluator     ExpressionEvaluator
	dateLocale    language.Tag
	dateNames     *DateNames
	logger        *slog.Logger
	maxDepth      int
	autoRowHeight bool
	listeners     []CellListener
	password      string
}

// DefaultMaxDepth bounds the nesting of scopes visited in one evaluation pass.
const DefaultMaxDepth = 64

func defaultOptions() *Options {
	return &Options{
		evaluator:     NewExpressionEvaluator(),
		dateLocale:    language.English,
		logger:        slog.New(slog.DiscardHandler),
		maxDepth:      DefaultMaxDepth,
		autoRowHeight: true,
	}
}

// clone copies o so that per-pass options never leak into the workbook.
func (o *Options) clone() *Options {
	cp := *o
	cp.globals = maps.Clone(o.globals)
	cp.listeners = slices.Clone(o.listeners)
	return &cp
}

// builtins returns the expression globals for a pass: formatDate and hyperlink,
// overridden by any user-supplied globals of the same name.
func (o *Options) builtins() map[string]any {
	names := o.resolveDateNames()
	env := map[string]any{
		"formatDate": func(date any, mask ...string) string {
			m := DefaultDateMask
			if len(mask) > 0 && mask[0] != "" {
				m = mask[0]
			}
			return FormatDate(date, m, names)
		},
		"hyperlink": Hyperlink,
	}
	for k, v := range o.globals {
		env[k] = v
	}
	return env
}

// resolveDateNames prefers explicit names over the locale tables.
func (o *Options) resolveDateNames() DateNames {
	if o.dateNames != nil {
		return *o.dateNames
	}
	return DateNamesFor(o.dateLocale)
}

// Option configures a Workbook or a single evaluation pass.
type Option func(*Options)

// WithGlobals adds named values and callables visible to every expression.
func WithGlobals(globals map[string]any) Option {
	return func(o *Options) {
		if o.globals == nil {
			o.globals = make(map[string]any, len(globals))
		}
		maps.Copy(o.globals, globals)
	}
}

// WithGlobal adds one named value or callable visible to every expression.
func WithGlobal(name string, v any) Option {
	return func(o *Options) {
		if o.globals == nil {
			o.globals = make(map[string]any)
		}
		o.globals[name] = v
	}
}

// WithEvaluator replaces the expression evaluator. Sharing one evaluator between
// workbooks shares its compiled-program cache.
func WithEvaluator(e ExpressionEvaluator) Option {
	return func(o *Options) { o.evaluator = e }
}

// WithDateLocale selects the day and month names used by formatDate, e.g. "de".
// Unsupported locales fall back to the closest supported one.
func WithDateLocale(tag string) Option {
	return func(o *Options) {
		if t, err := language.Parse(tag); err == nil {
			o.dateLocale = t
		}
	}
}

// WithDateNames sets custom day and month names for formatDate.
func WithDateNames(names DateNames) Option {
	return func(o *Options) { o.dateNames = &names }
}

// WithLogger sets the structured logger (default: discard).
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxDepth limits scope nesting during evaluation (default: 64).
func WithMaxDepth(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.maxDepth = n
		}
	}
}

// WithAutoRowHeight controls whether row heights are recomputed from cell fonts
// on save (default: true).
func WithAutoRowHeight(auto bool) Option {
	return func(o *Options) { o.autoRowHeight = auto }
}

// WithListener adds a listener notified before and after each cell value write.
func WithListener(l CellListener) Option {
	return func(o *Options) { o.listeners = append(o.listeners, l) }
}

// WithPassword opens an encrypted template.
func WithPassword(password string) Option {
	return func(o *Options) { o.password = password }
}
