package debat

import (
	"sort"
	"strings"
)

// SpeakerRecord is a raw speaker entry as produced by the upstream transcript
// parser. Naam/functie/fractie may be pre-segmented; Tekst is the speaker's
// free-text contribution, used as a heuristic fallback when they are not.
type SpeakerRecord struct {
	Name  string `json:"naam"`
	Role  string `json:"functie"`
	Party string `json:"fractie"`
	Text  string `json:"tekst"`
}

// RoleKind tags the outcome of speaker role classification.
type RoleKind int

const (
	RoleUnknown RoleKind = iota
	RoleMinister
	RoleChair
	RoleLegislator
)

// SpeakerRole is the classified role of one speaker. For RoleMinister,
// Detail is the full role label ("Minister van Financiën"); for
// RoleLegislator it is the party code.
type SpeakerRole struct {
	Kind   RoleKind
	Detail string
}

// Label returns the affiliation label stored in a SpeakerMap, or "" for an
// unclassifiable speaker.
func (r SpeakerRole) Label() string {
	switch r.Kind {
	case RoleMinister:
		if r.Detail != "" {
			return r.Detail
		}
		return "Minister"
	case RoleChair:
		return "Voorzitter"
	case RoleLegislator:
		return r.Detail
	default:
		return ""
	}
}

// DefaultPartyCodes is the built-in closed set of known party codes. The
// pipeline accepts an override so the list stays configuration, not code.
func DefaultPartyCodes() []string {
	return []string{
		"VVD", "D66", "PVV", "CDA", "SP", "PvdA", "GroenLinks",
		"ChristenUnie", "PvdD", "SGP", "DENK", "FVD", "Volt", "JA21",
		"BBB", "NSC", "50PLUS",
	}
}

// ClassifySpeaker derives a tagged role from one speaker record. It is a
// pure function over the record and the known-party set: ministerial and
// presiding roles are keyword matches on the role/free-text fields, and
// anything else is a legislator when a known party code occurs in the record.
func ClassifySpeaker(rec SpeakerRecord, parties []string) SpeakerRole {
	roleText := strings.ToLower(rec.Role)
	freeText := strings.ToLower(rec.Text)

	for _, lead := range []string{"staatssecretaris", "minister"} {
		if !strings.Contains(roleText, lead) && !strings.Contains(freeText, lead) {
			continue
		}
		title := strings.ToUpper(lead[:1]) + lead[1:]
		if portfolio := portfolioAfter(rec.Role, lead+" van"); portfolio != "" {
			return SpeakerRole{Kind: RoleMinister, Detail: title + " van " + portfolio}
		}
		if portfolio := portfolioAfter(rec.Text, lead+" van"); portfolio != "" {
			return SpeakerRole{Kind: RoleMinister, Detail: title + " van " + portfolio}
		}
		return SpeakerRole{Kind: RoleMinister, Detail: title}
	}

	if strings.Contains(roleText, "voorzitter") || strings.Contains(freeText, "voorzitter:") {
		return SpeakerRole{Kind: RoleChair}
	}

	if p := matchPartyCode(rec.Party, parties); p != "" {
		return SpeakerRole{Kind: RoleLegislator, Detail: p}
	}
	if p := matchPartyCode(rec.Text, parties); p != "" {
		return SpeakerRole{Kind: RoleLegislator, Detail: p}
	}

	return SpeakerRole{Kind: RoleUnknown}
}

// BuildSpeakerMap folds raw speaker records into a name → affiliation map.
// Pre-segmented name/fractie pairs are preferred; otherwise the role is
// inferred heuristically from the record's free text. Records that yield
// neither a usable name nor a label are skipped: the map is best-effort
// enrichment and may legitimately come out empty.
func BuildSpeakerMap(records []SpeakerRecord, parties []string) SpeakerMap {
	if len(parties) == 0 {
		parties = DefaultPartyCodes()
	}

	m := SpeakerMap{}
	for _, rec := range records {
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			name = givenNameAfterHonorific(rec.Text)
		}
		if name == "" {
			continue
		}
		if _, seen := m[name]; seen {
			continue
		}

		role := ClassifySpeaker(rec, parties)
		if label := role.Label(); label != "" {
			m[name] = label
			continue
		}
		if p := strings.TrimSpace(rec.Party); p != "" {
			m[name] = p
		}
	}
	return m
}

// maxRelevantSpeakers caps how many speaker entries are put into a single
// prompt.
const maxRelevantSpeakers = 30

// RelevantSpeakers returns the subset of m whose names occur literally
// (case-insensitively) in the chunk prefix, capped at maxRelevantSpeakers
// entries in deterministic name order.
func RelevantSpeakers(prefix string, m SpeakerMap) SpeakerMap {
	if len(m) == 0 {
		return SpeakerMap{}
	}

	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	low := strings.ToLower(prefix)
	out := SpeakerMap{}
	for _, name := range names {
		if len(out) >= maxRelevantSpeakers {
			break
		}
		if strings.Contains(low, strings.ToLower(name)) {
			out[name] = m[name]
		}
	}
	return out
}

// portfolioAfter extracts the portfolio name following a role lead phrase
// ("minister van", "staatssecretaris van"), cut at the first punctuation.
func portfolioAfter(text, lead string) string {
	low := strings.ToLower(text)
	i := strings.Index(low, lead)
	if i == -1 {
		return ""
	}
	rest := strings.TrimLeft(text[i+len(lead):], " ")
	if end := strings.IndexAny(rest, ".,;:()\n"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// givenNameAfterHonorific recovers a speaker name from the token following a
// Dutch honorific marker in free text.
func givenNameAfterHonorific(text string) string {
	for _, h := range []string{"De heer ", "Mevrouw "} {
		i := strings.Index(text, h)
		if i == -1 {
			continue
		}
		fields := strings.Fields(text[i+len(h):])
		if len(fields) == 0 {
			continue
		}
		name := strings.Trim(fields[0], ".,:;()\"'")
		if name != "" {
			return name
		}
	}
	return ""
}

// matchPartyCode returns the first known party code occurring as a whole
// token in text, or "".
func matchPartyCode(text string, parties []string) string {
	if text == "" {
		return ""
	}
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '(', ')', ',', '.', ':', ';', '"', '\'':
			return true
		}
		return r == ' ' || r == '\n' || r == '\t'
	})
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	for _, p := range parties {
		if _, ok := set[p]; ok {
			return p
		}
	}
	return ""
}
