package issue

// Grouped splits collected issues by severity, each slice in insertion order.
type Grouped struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	Infos    []Issue `json:"infos"`
}

// Collector accumulates issues for a single request. It is not safe for concurrent use.
type Collector struct {
	items []Issue
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends an already constructed issue.
func (c *Collector) Add(i Issue) {
	c.items = append(c.items, i)
}

// AddError records an error-severity issue.
func (c *Collector) AddError(field string, code Code, params map[string]any) {
	c.Add(New(SeverityError, field, code, params))
}

// AddWarning records a warning-severity issue.
func (c *Collector) AddWarning(field string, code Code, params map[string]any) {
	c.Add(New(SeverityWarning, field, code, params))
}

// AddInfo records an info-severity issue.
func (c *Collector) AddInfo(field string, code Code, params map[string]any) {
	c.Add(New(SeverityInfo, field, code, params))
}

// Merge appends every issue of other, preserving its order.
func (c *Collector) Merge(other *Collector) {
	if other == nil {
		return
	}
	c.items = append(c.items, other.items...)
}

// Extend appends the supplied issues.
func (c *Collector) Extend(items []Issue) {
	c.items = append(c.items, items...)
}

// HasErrors reports whether any error-severity issue was collected.
func (c *Collector) HasErrors() bool {
	if c == nil {
		return false
	}
	for _, i := range c.items {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FirstError returns the earliest error-severity issue.
func (c *Collector) FirstError() (Issue, bool) {
	if c == nil {
		return Issue{}, false
	}
	for _, i := range c.items {
		if i.Severity == SeverityError {
			return i, true
		}
	}
	return Issue{}, false
}

// Len returns the number of collected issues.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Issues returns a copy of every issue in insertion order.
func (c *Collector) Issues() []Issue {
	if c == nil || len(c.items) == 0 {
		return []Issue{}
	}
	out := make([]Issue, len(c.items))
	copy(out, c.items)
	return out
}

// All groups issues by severity.
func (c *Collector) All() Grouped {
	g := Grouped{Errors: []Issue{}, Warnings: []Issue{}, Infos: []Issue{}}
	if c == nil {
		return g
	}
	for _, i := range c.items {
		switch i.Severity {
		case SeverityError:
			g.Errors = append(g.Errors, i)
		case SeverityWarning:
			g.Warnings = append(g.Warnings, i)
		default:
			g.Infos = append(g.Infos, i)
		}
	}
	return g
}
