package metadata

import (
	"strings"

	"github.com/mrlokans/elibrary/internal/entities"
)

// subjectKeywords is checked in order; the first keyword found in any
// subject wins.
var subjectKeywords = []struct {
	keyword  string
	category entities.Category
}{
	{"science fiction", entities.CategoryFiction},
	{"non-fiction", entities.CategoryNonFiction},
	{"nonfiction", entities.CategoryNonFiction},
	{"biography", entities.CategoryBiography},
	{"autobiography", entities.CategoryBiography},
	{"philosophy", entities.CategoryPhilosophy},
	{"religion", entities.CategoryReligion},
	{"theology", entities.CategoryReligion},
	{"computer", entities.CategoryTechnology},
	{"programming", entities.CategoryTechnology},
	{"software", entities.CategoryTechnology},
	{"algorithm", entities.CategoryTechnology},
	{"engineering", entities.CategoryTechnology},
	{"business", entities.CategoryBusiness},
	{"management", entities.CategoryBusiness},
	{"economics", entities.CategoryBusiness},
	{"entrepreneur", entities.CategoryBusiness},
	{"history", entities.CategoryHistory},
	{"physics", entities.CategoryScience},
	{"science", entities.CategoryScience},
	{"cosmology", entities.CategoryScience},
	{"biology", entities.CategoryScience},
	{"mathematics", entities.CategoryScience},
	{"health", entities.CategoryHealth},
	{"medicine", entities.CategoryHealth},
	{"art", entities.CategoryArts},
	{"music", entities.CategoryArts},
	{"education", entities.CategoryEducation},
	{"textbook", entities.CategoryEducation},
	{"poetry", entities.CategoryLiterature},
	{"literature", entities.CategoryLiterature},
	{"fiction", entities.CategoryFiction},
	{"novel", entities.CategoryFiction},
}

// GuessCategory maps provider subjects onto a catalog category. It returns
// "" when nothing matches so the admin has to pick one.
func GuessCategory(subjects []string) entities.Category {
	if len(subjects) == 0 {
		return ""
	}
	lowered := make([]string, len(subjects))
	for i, s := range subjects {
		lowered[i] = strings.ToLower(s)
	}

	for _, kw := range subjectKeywords {
		for _, s := range lowered {
			if containsWord(s, kw.keyword) {
				return kw.category
			}
		}
	}
	return ""
}

// containsWord matches keyword at the start of a word, so "art" hits
// "Art, Modern" but not "Startups".
func containsWord(s, keyword string) bool {
	for i := 0; ; {
		idx := strings.Index(s[i:], keyword)
		if idx < 0 {
			return false
		}
		pos := i + idx
		if pos == 0 || !isLetter(s[pos-1]) {
			return true
		}
		i = pos + 1
	}
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}
