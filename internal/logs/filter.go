package logs

import (
	"encoding/json"
	"strings"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Filter selects log lines. Zero values match everything.
type Filter struct {
	MinLevel  string
	Component string
	ItemID    string
}

func (f Filter) empty() bool {
	return f.MinLevel == "" && f.Component == "" && f.ItemID == ""
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	fields, ok := parseLine(line)
	if !ok {
		return false
	}
	if f.MinLevel != "" {
		want, known := levelRank[strings.ToLower(strings.TrimSpace(f.MinLevel))]
		if have, ok := levelRank[fields.level]; known && (!ok || have < want) {
			return false
		}
	}
	if f.Component != "" && !strings.EqualFold(fields.component, strings.TrimSpace(f.Component)) {
		return false
	}
	if f.ItemID != "" && !matchItem(fields.itemID, strings.TrimSpace(f.ItemID)) {
		return false
	}
	return true
}

type lineFields struct {
	level     string
	component string
	itemID    string
}

func parseLine(line string) (lineFields, bool) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		return parseJSONLine(line)
	}
	return parseConsoleLine(line)
}

func parseJSONLine(line string) (lineFields, bool) {
	var raw struct {
		Level     string `json:"level"`
		Component string `json:"component"`
		ItemID    string `json:"item_id"`
	}
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return lineFields{}, false
	}
	return lineFields{
		level:     strings.ToLower(raw.Level),
		component: raw.Component,
		itemID:    raw.ItemID,
	}, true
}

// parseConsoleLine reads "<ts> <LEVEL> <component>[<item>]: <msg>".
func parseConsoleLine(line string) (lineFields, bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 3 {
		return lineFields{}, false
	}
	fields := lineFields{level: strings.ToLower(parts[1])}
	head, _, found := strings.Cut(parts[2], ": ")
	if !found || strings.ContainsAny(head, " =") {
		return fields, true
	}
	if open := strings.IndexByte(head, '['); open >= 0 && strings.HasSuffix(head, "]") {
		fields.component = head[:open]
		fields.itemID = head[open+1 : len(head)-1]
	} else {
		fields.component = head
	}
	return fields, true
}

// matchItem accepts full ids, the console short form, and the CLI short form.
func matchItem(logged, want string) bool {
	if logged == "" || want == "" {
		return false
	}
	return strings.HasSuffix(logged, want) || strings.HasSuffix(want, logged)
}
