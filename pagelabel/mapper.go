package pagelabel

import "strconv"

// Mapper translates between printed labels and physical pages.
//
// Lookups try, in order: an exact printed label, a printed page whose numeric
// span contains the requested number, an exact fallback label, and finally the
// number shifted by the front-matter offset. When two pages share a label the
// printed one wins, and among equals the earlier page wins.
type Mapper struct {
	pages    []Page
	byLabel  map[string]int
	printed  map[string]bool
	byPage   map[int]string
	offset   int
	detected bool
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithOffset sets the number of front-matter pages that precede the page
// printed as "1".
func WithOffset(offset int) MapperOption {
	return func(m *Mapper) {
		if offset < 0 {
			offset = 0
		}
		m.offset = offset
		m.detected = false
	}
}

// WithDetectedOffset derives the offset from the pages with DetectOffset.
func WithDetectedOffset() MapperOption {
	return func(m *Mapper) {
		m.detected = true
	}
}

// NewMapper builds a Mapper over pages as returned by Reconcile.
func NewMapper(pages []Page, opts ...MapperOption) *Mapper {
	m := &Mapper{
		pages:   append([]Page(nil), pages...),
		byLabel: make(map[string]int, len(pages)),
		byPage:  make(map[int]string, len(pages)),
		printed: make(map[string]bool, len(pages)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.detected {
		m.offset = DetectOffset(m.pages)
	}

	for _, p := range m.pages {
		m.byPage[p.Physical] = p.Label
		_, seen := m.byLabel[p.Label]
		if !seen || (p.Printed && !m.printed[p.Label]) {
			m.byLabel[p.Label] = p.Physical
			m.printed[p.Label] = p.Printed
		}
	}
	return m
}

// Offset returns the front-matter offset in use.
func (m *Mapper) Offset() int { return m.offset }

// Len returns the number of pages known to the mapper.
func (m *Mapper) Len() int { return len(m.pages) }

// Pages returns a copy of the page table.
func (m *Mapper) Pages() []Page {
	return append([]Page(nil), m.pages...)
}

// Resolve returns the physical page a label refers to.
func (m *Mapper) Resolve(label string) (int, bool) {
	physical, exact := m.byLabel[label]
	if exact && m.printed[label] {
		return physical, true
	}
	first, _, ok := ParseLabel(label)
	if ok {
		for _, p := range m.pages {
			if p.Printed && first >= p.First && first <= p.Last {
				return p.Physical, true
			}
		}
	}
	if exact {
		return physical, true
	}
	if !ok {
		return 0, false
	}
	physical = first + m.offset
	if physical < 1 || (len(m.pages) > 0 && physical > len(m.pages)) {
		return 0, false
	}
	return physical, true
}

// Label returns the label of a physical page.
func (m *Mapper) Label(physical int) (string, bool) {
	if label, ok := m.byPage[physical]; ok {
		return label, true
	}
	if len(m.pages) == 0 && physical > m.offset {
		return strconv.Itoa(physical - m.offset), true
	}
	return "", false
}
