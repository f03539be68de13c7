package action

// The canonical verb catalog is fixed language surface, shared by every
// registry. Programs may spell a statement with any synonym; generated code
// always dispatches on the canonical form.
var canonicalVerbs = map[string]struct{}{
	"retrieve":   {},
	"compute":    {},
	"validate":   {},
	"compare":    {},
	"transform":  {},
	"create":     {},
	"update":     {},
	"return":     {},
	"emit":       {},
	"log":        {},
	"store":      {},
	"publish":    {},
	"listen":     {},
	"watch":      {},
	"wait":       {},
	"call":       {},
	"filter":     {},
	"reduce":     {},
	"map":        {},
	"accept":     {},
	"transition": {},
	"sort":       {},
	"run":        {},
	"resolve":    {},
}

// builtinSynonyms maps alternate spellings onto canonical verbs. The
// pipeline verbs filter, map and reduce never appear here, in either
// position; those three always mean themselves.
var builtinSynonyms = map[string]string{
	"calculate": "compute",
	"verify":    "validate",
	"check":     "validate",
	"respond":   "return",
	"reply":     "return",
	"answer":    "return",
	"fetch":     "retrieve",
	"get":       "retrieve",
	"load":      "retrieve",
	"convert":   "transform",
	"make":      "create",
	"build":     "create",
	"modify":    "update",
	"change":    "update",
	"send":      "emit",
	"dispatch":  "emit",
	"print":     "log",
	"record":    "log",
	"save":      "store",
	"serve":     "listen",
	"observe":   "watch",
	"sleep":     "wait",
	"pause":     "wait",
	"invoke":    "call",
	"request":   "call",
	"execute":   "run",
	"exec":      "run",
	"order":     "sort",
	"arrange":   "sort",
	"locate":    "resolve",
}

var pipelineVerbs = map[string]struct{}{
	"filter": {},
	"map":    {},
	"reduce": {},
}

// IsCanonicalVerb reports whether verb is in the canonical catalog.
func IsCanonicalVerb(verb string) bool {
	_, ok := canonicalVerbs[verb]
	return ok
}

func isPipelineVerb(verb string) bool {
	_, ok := pipelineVerbs[verb]
	return ok
}
