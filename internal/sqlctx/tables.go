package sqlctx

import "strings"

// ExtractTables returns the tables referenced by the FROM, JOIN, INTO and
// UPDATE clauses of stmt, in order of appearance.
func ExtractTables(stmt string) []TableRef {
	return extractTables(tokenize(stmt))
}

func extractTables(toks []token) []TableRef {
	var refs []TableRef
	insert := len(toks) > 0 && (toks[0].lower == "insert" || toks[0].lower == "replace")

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if !t.isIdent() {
			continue
		}
		list := t.lower == "from"
		if !list && t.lower != "into" && t.lower != "update" && !strings.HasSuffix(t.lower, "join") {
			continue
		}

		j := i + 1
		for {
			ref, next, ok := parseTableRef(toks, j)
			if !ok {
				break
			}
			refs = append(refs, ref)
			j = next
			// INSERT INTO t (a, b) SELECT ... FROM other: only t is in scope.
			if insert {
				return refs
			}
			if !list || j >= len(toks) || toks[j].text != "," {
				break
			}
			j++
		}
		i = j - 1
	}
	return refs
}

// parseTableRef reads [schema.]name [[AS] alias] starting at toks[i].
func parseTableRef(toks []token, i int) (TableRef, int, bool) {
	if i >= len(toks) || !toks[i].isName() {
		return TableRef{}, i, false
	}
	ref := TableRef{Name: toks[i].name()}
	i++
	for i+1 < len(toks) && toks[i].text == "." && toks[i+1].isName() {
		if ref.Schema != "" {
			ref.Schema += "." + ref.Name
		} else {
			ref.Schema = ref.Name
		}
		ref.Name = toks[i+1].name()
		i += 2
	}

	if i < len(toks) && toks[i].lower == "as" {
		i++
	}
	if i < len(toks) && toks[i].isName() && !toks[i].isKeyword() {
		ref.Alias = toks[i].name()
		i++
	}
	return ref, i, true
}
