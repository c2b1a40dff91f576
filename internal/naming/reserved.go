package naming

// sqlKeywords holds SQL keywords that commonly collide with derived names.
var sqlKeywords = map[string]bool{
	"all":        true,
	"and":        true,
	"as":         true,
	"between":    true,
	"by":         true,
	"case":       true,
	"check":      true,
	"column":     true,
	"constraint": true,
	"create":     true,
	"cross":      true,
	"default":    true,
	"delete":     true,
	"desc":       true,
	"distinct":   true,
	"drop":       true,
	"else":       true,
	"end":        true,
	"exists":     true,
	"false":      true,
	"for":        true,
	"foreign":    true,
	"from":       true,
	"grant":      true,
	"group":      true,
	"having":     true,
	"in":         true,
	"index":      true,
	"inner":      true,
	"insert":     true,
	"into":       true,
	"is":         true,
	"join":       true,
	"key":        true,
	"left":       true,
	"like":       true,
	"limit":      true,
	"not":        true,
	"null":       true,
	"offset":     true,
	"on":         true,
	"or":         true,
	"order":      true,
	"outer":      true,
	"primary":    true,
	"references": true,
	"right":      true,
	"select":     true,
	"table":      true,
	"then":       true,
	"to":         true,
	"true":       true,
	"union":      true,
	"unique":     true,
	"update":     true,
	"user":       true,
	"using":      true,
	"values":     true,
	"when":       true,
	"where":      true,
	"with":       true,
}

// isSQLKeyword expects a lower-case name.
func isSQLKeyword(name string) bool {
	return sqlKeywords[name]
}
