// Package record defines the core domain types for bibliographic records
// moving through the review pipeline.
package record

// Provenance records which source or process last set a field, plus any caveat.
type Provenance struct {
	Source string `json:"source"`
	Note   string `json:"note,omitempty"`
}

// Record represents a bibliographic entry.
//
// Comparable fields (title, author, year, venue, volume, number, pages, DOI)
// are typed because the similarity engine reads them directly; anything else
// a source delivers lands in Fields.
type Record struct {
	// Identity
	ID        string `json:"id"`
	EntryType string `json:"entry_type"` // article, inproceedings, online, ...
	Status    Status `json:"status"`

	// Provenance ledger. Each token is "<source-name>/<source-local-id>".
	// Origins are only ever unioned, never removed.
	Origins []string `json:"origins"`

	// Comparable fields
	Title     string `json:"title,omitempty"`
	Author    string `json:"author,omitempty"`
	Year      string `json:"year,omitempty"`
	Journal   string `json:"journal,omitempty"`
	Booktitle string `json:"booktitle,omitempty"`
	Volume    string `json:"volume,omitempty"`
	Number    string `json:"number,omitempty"`
	Pages     string `json:"pages,omitempty"`
	DOI       string `json:"doi,omitempty"`

	// Everything else (abstract, url, keywords, ...)
	Fields map[string]string `json:"fields,omitempty"`

	// Per-field provenance: which origin or process last set the field.
	MasterdataProvenance map[string]Provenance `json:"masterdata_provenance,omitempty"`
	DataProvenance       map[string]Provenance `json:"data_provenance,omitempty"`
}

// ContainerTitle returns the venue field relevant for this entry type:
// booktitle for inproceedings/incollection, journal otherwise.
func (r *Record) ContainerTitle() string {
	switch r.EntryType {
	case "inproceedings", "incollection", "proceedings":
		return r.Booktitle
	default:
		return r.Journal
	}
}

// HasOrigin reports whether the record carries the given origin token.
func (r *Record) HasOrigin(token string) bool {
	for _, o := range r.Origins {
		if o == token {
			return true
		}
	}
	return false
}

// SharesOrigin reports whether the two records have any origin token in common.
func (r *Record) SharesOrigin(other *Record) bool {
	for _, o := range other.Origins {
		if r.HasOrigin(o) {
			return true
		}
	}
	return false
}

// AddOrigins unions the given tokens into the record's origin set,
// preserving existing order and skipping tokens already present.
func (r *Record) AddOrigins(tokens ...string) {
	for _, t := range tokens {
		if !r.HasOrigin(t) {
			r.Origins = append(r.Origins, t)
		}
	}
}

// IsMergeResult reports whether the record was produced by merging
// more than one source record.
func (r *Record) IsMergeResult() bool {
	return len(r.Origins) > 1
}

// Clone returns a deep copy of the record. Snapshots hand out clones so
// callers can never mutate historical state.
func (r *Record) Clone() *Record {
	c := *r
	c.Origins = append([]string(nil), r.Origins...)
	if r.Fields != nil {
		c.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			c.Fields[k] = v
		}
	}
	if r.MasterdataProvenance != nil {
		c.MasterdataProvenance = make(map[string]Provenance, len(r.MasterdataProvenance))
		for k, v := range r.MasterdataProvenance {
			c.MasterdataProvenance[k] = v
		}
	}
	if r.DataProvenance != nil {
		c.DataProvenance = make(map[string]Provenance, len(r.DataProvenance))
		for k, v := range r.DataProvenance {
			c.DataProvenance[k] = v
		}
	}
	return &c
}
