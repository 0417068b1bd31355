package sql

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RejectionCode identifies the classifier stage that declined a query.
type RejectionCode string

const (
	CodeAccepted            RejectionCode = ""
	CodeEmptyQuery          RejectionCode = "empty_query"
	CodeEmptyAfterCleaning  RejectionCode = "empty_after_cleaning"
	CodeDangerousCommand    RejectionCode = "dangerous_command"
	CodeDangerousPattern    RejectionCode = "dangerous_pattern"
	CodeModificationCommand RejectionCode = "modification_command"
	CodeConditionalCommand  RejectionCode = "conditional_command"
	CodeCommandNotAllowed   RejectionCode = "command_not_allowed"
)

// ReportTruncateLength bounds the query copies carried in a SecurityReport.
const ReportTruncateLength = 200

// DangerousCommands are never permitted, whatever allowModifications says.
// XP_ and SP_ match any word with that prefix.
var DangerousCommands = []string{
	"DELETE", "DROP", "TRUNCATE", "ALTER", "CREATE", "EXEC", "EXECUTE",
	"INSERT", "UPDATE", "MERGE", "BULK", "OPENROWSET", "OPENDATASOURCE",
	"XP_", "SP_", "SHUTDOWN", "KILL", "RESTORE", "BACKUP",
}

// AllowedCommands is the first-word whitelist.
var AllowedCommands = []string{"SELECT", "WITH"}

// ModificationCommands are rejected unless modifications are explicitly allowed.
var ModificationCommands = []string{"INSERT", "UPDATE", "DELETE", "MERGE"}

// ConditionalCommands are set operations rejected by default.
var ConditionalCommands = []string{"UNION", "INTERSECT", "EXCEPT"}

// patternScope selects which text a dangerous pattern is matched against.
type patternScope int

const (
	scanCleaned patternScope = iota
	// scanOriginal patterns look for verbs inside comments.
	scanOriginal
	// scanBoth also catches text that comment stripping removed, such as "--" inside a
	// string literal hiding the rest of the line.
	scanBoth
)

type dangerousPattern struct {
	ID          string
	Description string
	re          *regexp.Regexp
	scope       patternScope
}

const commentedVerbs = `(DELETE|DROP|TRUNCATE|ALTER|CREATE|INSERT|UPDATE)`

var dangerousPatterns = []dangerousPattern{
	{ID: "exec_call", Description: "EXEC(", re: regexp.MustCompile(`(?i)\bEXEC\s*\(`)},
	{ID: "execute_call", Description: "EXECUTE(", re: regexp.MustCompile(`(?i)\bEXECUTE\s*\(`)},
	{ID: "sp_executesql", Description: "sp_executesql", re: regexp.MustCompile(`(?i)\bsp_executesql\b`)},
	{ID: "eval_call", Description: "EVAL(", re: regexp.MustCompile(`(?i)\bEVAL\s*\(`)},
	{ID: "system_variable", Description: "system variable @@name", re: regexp.MustCompile(`@@\w+`)},
	{ID: "extended_procedure", Description: "extended procedure xp_*", re: regexp.MustCompile(`(?i)\bxp_\w+`)},
	{ID: "openrowset", Description: "OPENROWSET", re: regexp.MustCompile(`(?i)\bOPENROWSET\b`)},
	{ID: "opendatasource", Description: "OPENDATASOURCE", re: regexp.MustCompile(`(?i)\bOPENDATASOURCE\b`)},
	{ID: "bulk_insert", Description: "BULK INSERT", re: regexp.MustCompile(`(?i)\bBULK\s+INSERT\b`)},
	{ID: "shutdown", Description: "SHUTDOWN", re: regexp.MustCompile(`(?i)\bSHUTDOWN\b`)},
	{ID: "kill", Description: "KILL", re: regexp.MustCompile(`(?i)\bKILL\b`)},
	{ID: "stacked_statement", Description: "statement stacking followed by a dangerous verb", re: regexp.MustCompile(`(?i);.*\s*` + commentedVerbs), scope: scanBoth},
	{ID: "line_comment_command", Description: "dangerous verb inside a line comment", re: regexp.MustCompile(`(?i)--.*\s*` + commentedVerbs), scope: scanOriginal},
	{ID: "block_comment_command", Description: "dangerous verb inside a block comment", re: regexp.MustCompile(`(?i)/\*.*\s*` + commentedVerbs + `.*\*/`), scope: scanOriginal},
}

var (
	lineCommentRegex  = regexp.MustCompile(`(?m)--.*$`)
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)
	firstWordRegex    = regexp.MustCompile(`^(\w+)`)

	dangerousCommandRegexes    = wordRegexes(DangerousCommands)
	modificationCommandRegexes = wordRegexes(ModificationCommands)
	conditionalCommandRegexes  = wordRegexes(ConditionalCommands)
)

// wordRegexes compiles whole-word, case-insensitive matchers. A trailing underscore
// marks a prefix family.
func wordRegexes(words []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		if strings.HasSuffix(w, "_") {
			out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\w*`)
			continue
		}
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// Verdict is the classifier's decision for one query text.
type Verdict struct {
	IsSafe               bool          `json:"is_safe"`
	Code                 RejectionCode `json:"code,omitempty"`
	Reason               string        `json:"message"`
	Offending            string        `json:"offending,omitempty"`
	FirstCommand         string        `json:"first_command"`
	DangerousCommands    []string      `json:"dangerous_commands"`
	DangerousPatterns    []string      `json:"dangerous_patterns"`
	ModificationCommands []string      `json:"modification_commands"`
	ConditionalCommands  []string      `json:"conditional_commands"`
}

// SecurityReport is a Verdict plus truncated copies of the analysed text.
type SecurityReport struct {
	Verdict
	CleanedQuery  string `json:"cleaned_query"`
	OriginalQuery string `json:"original_query"`
}

// CleanQuery strips line and block comments and collapses whitespace.
func CleanQuery(query string) string {
	cleaned := lineCommentRegex.ReplaceAllString(query, "")
	cleaned = blockCommentRegex.ReplaceAllString(cleaned, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Classify runs the staged allow/deny policy over query. Stages run in a fixed order
// and the first failing stage decides the reason, but every finding list is always
// filled so reports show the whole picture.
func Classify(query string, allowModifications bool) Verdict {
	v := Verdict{
		DangerousCommands:    []string{},
		DangerousPatterns:    []string{},
		ModificationCommands: []string{},
		ConditionalCommands:  []string{},
	}

	if strings.TrimSpace(query) == "" {
		return v.reject(CodeEmptyQuery, "", "query is empty or invalid")
	}

	cleaned := CleanQuery(query)
	if cleaned == "" {
		return v.reject(CodeEmptyAfterCleaning, "", "query is empty after removing comments")
	}

	// Comment stripping does not know about string literals, so "--" inside quotes
	// removes real statement text from the cleaned form. Commands found only in the
	// original text are reported as hidden and still reject.
	commands := findDangerousCommands(cleaned)
	hidden := missingFrom(commands, findDangerousCommands(query))

	v.FirstCommand = firstCommand(cleaned)
	v.DangerousCommands = append(commands, hidden...)
	v.DangerousPatterns = findDangerousPatterns(query, cleaned)
	v.ModificationCommands = matchWords(cleaned, ModificationCommands, modificationCommandRegexes)
	v.ConditionalCommands = matchWords(cleaned, ConditionalCommands, conditionalCommandRegexes)
	v.ConditionalCommands = append(v.ConditionalCommands,
		missingFrom(v.ConditionalCommands, matchWords(query, ConditionalCommands, conditionalCommandRegexes))...)

	if len(commands) > 0 {
		return v.reject(CodeDangerousCommand, commands[0],
			fmt.Sprintf("dangerous command detected: %s. Execution blocked", strings.Join(v.DangerousCommands, ", ")))
	}
	if len(v.DangerousPatterns) > 0 {
		return v.reject(CodeDangerousPattern, v.DangerousPatterns[0],
			fmt.Sprintf("dangerous pattern detected (%s): dynamic SQL or suspicious construct. Execution blocked", strings.Join(v.DangerousPatterns, ", ")))
	}
	if len(hidden) > 0 {
		return v.reject(CodeDangerousCommand, hidden[0],
			fmt.Sprintf("dangerous command hidden behind comment syntax: %s. Execution blocked", strings.Join(hidden, ", ")))
	}
	if !allowModifications && len(v.ModificationCommands) > 0 {
		return v.reject(CodeModificationCommand, v.ModificationCommands[0],
			fmt.Sprintf("modification commands detected: %s. Only SELECT queries are allowed", strings.Join(v.ModificationCommands, ", ")))
	}
	if len(v.ConditionalCommands) > 0 {
		return v.reject(CodeConditionalCommand, v.ConditionalCommands[0],
			fmt.Sprintf("conditional commands detected: %s. Blocked as a precaution", strings.Join(v.ConditionalCommands, ", ")))
	}
	if !isAllowedCommand(v.FirstCommand) {
		return v.reject(CodeCommandNotAllowed, v.FirstCommand,
			fmt.Sprintf("command not allowed: '%s'. Only SELECT and WITH are allowed", v.FirstCommand))
	}

	v.IsSafe = true
	v.Reason = "query validated successfully"
	return v
}

func (v Verdict) reject(code RejectionCode, offending, reason string) Verdict {
	v.IsSafe = false
	v.Code = code
	v.Offending = offending
	v.Reason = reason
	return v
}

// GetSecurityReport classifies query in read-only mode and attaches truncated copies
// of the original and cleaned text. It never executes anything.
func GetSecurityReport(query string) SecurityReport {
	return SecurityReport{
		Verdict:       Classify(query, false),
		CleanedQuery:  truncateRunes(CleanQuery(query), ReportTruncateLength),
		OriginalQuery: truncateRunes(query, ReportTruncateLength),
	}
}

// SecurityPolicy describes the fixed classifier configuration for introspection.
type SecurityPolicy struct {
	DangerousCommandsBlocked   []string `json:"dangerous_commands_blocked"`
	AllowedCommands            []string `json:"allowed_commands"`
	ConditionalCommandsBlocked []string `json:"conditional_commands_blocked"`
	DangerousPatternIDs        []string `json:"dangerous_patterns"`
	TotalDangerousPatterns     int      `json:"total_dangerous_patterns"`
	SecurityLevel              string   `json:"security_level"`
	ModificationsAllowed       bool     `json:"modifications_allowed"`
	Description                string   `json:"description"`
}

// GetSecurityPolicy returns the active policy.
func GetSecurityPolicy() SecurityPolicy {
	ids := make([]string, len(dangerousPatterns))
	for i, p := range dangerousPatterns {
		ids[i] = p.ID
	}
	return SecurityPolicy{
		DangerousCommandsBlocked:   append([]string(nil), DangerousCommands...),
		AllowedCommands:            append([]string(nil), AllowedCommands...),
		ConditionalCommandsBlocked: append([]string(nil), ConditionalCommands...),
		DangerousPatternIDs:        ids,
		TotalDangerousPatterns:     len(dangerousPatterns),
		SecurityLevel:              "maximum",
		ModificationsAllowed:       false,
		Description:                "Free-form queries must start with SELECT or WITH; schema and data changes go through structured, parameterized operations.",
	}
}

func firstCommand(cleaned string) string {
	m := firstWordRegex.FindStringSubmatch(strings.ToUpper(cleaned))
	if m == nil {
		return ""
	}
	return m[1]
}

func isAllowedCommand(cmd string) bool {
	for _, allowed := range AllowedCommands {
		if cmd == allowed {
			return true
		}
	}
	return false
}

// findDangerousCommands reports prefix families by the actual matched word.
func findDangerousCommands(text string) []string {
	found := []string{}
	for i, re := range dangerousCommandRegexes {
		cmd := DangerousCommands[i]
		if strings.HasSuffix(cmd, "_") {
			if m := re.FindString(text); m != "" {
				found = append(found, strings.ToUpper(m))
			}
			continue
		}
		if re.MatchString(text) {
			found = append(found, cmd)
		}
	}
	return found
}

func findDangerousPatterns(original, cleaned string) []string {
	found := []string{}
	for _, p := range dangerousPatterns {
		var matched bool
		switch p.scope {
		case scanOriginal:
			matched = p.re.MatchString(original)
		case scanBoth:
			matched = p.re.MatchString(cleaned) || p.re.MatchString(original)
		default:
			matched = p.re.MatchString(cleaned)
		}
		if matched {
			found = append(found, p.ID)
		}
	}
	return found
}

// missingFrom returns the entries of candidates that are not in have.
func missingFrom(have, candidates []string) []string {
	out := []string{}
	for _, c := range candidates {
		if !slices.Contains(have, c) {
			out = append(out, c)
		}
	}
	return out
}

func matchWords(text string, words []string, regexes []*regexp.Regexp) []string {
	found := []string{}
	for i, re := range regexes {
		if re.MatchString(text) {
			found = append(found, words[i])
		}
	}
	return found
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// Classifier memoizes verdicts for identical query text. Safe for concurrent use.
type Classifier struct {
	cache *lru.Cache[verdictKey, Verdict]
}

type verdictKey struct {
	query              string
	allowModifications bool
}

// NewClassifier creates a memoizing classifier. A non-positive size disables caching.
func NewClassifier(cacheSize int) (*Classifier, error) {
	if cacheSize <= 0 {
		return &Classifier{}, nil
	}
	cache, err := lru.New[verdictKey, Verdict](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create verdict cache: %w", err)
	}
	return &Classifier{cache: cache}, nil
}

// Classify returns the cached verdict for query or computes and stores a new one.
func (c *Classifier) Classify(query string, allowModifications bool) Verdict {
	if c == nil || c.cache == nil {
		return Classify(query, allowModifications)
	}
	key := verdictKey{query: query, allowModifications: allowModifications}
	if v, ok := c.cache.Get(key); ok {
		return v
	}
	v := Classify(query, allowModifications)
	c.cache.Add(key, v)
	return v
}
