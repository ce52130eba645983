package vectorstore

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeTags(t *testing.T) {
	if got := EncodeTags(nil); got != "" {
		t.Errorf("EncodeTags(nil) = %q", got)
	}
	if got := EncodeTags([]string{"hr", "legal"}); got != ",hr,legal," {
		t.Errorf("EncodeTags = %q", got)
	}
	if got := DecodeTags(",hr,legal,"); !reflect.DeepEqual(got, []string{"hr", "legal"}) {
		t.Errorf("DecodeTags = %v", got)
	}
	if got := DecodeTags(""); got != nil {
		t.Errorf("DecodeTags(\"\") = %v", got)
	}
}

func TestBuildTagFilter(t *testing.T) {
	if got := buildTagFilter(nil); got != "" {
		t.Errorf("buildTagFilter(nil) = %q", got)
	}

	got := buildTagFilter([]string{"hr"})
	want := `tags like "%,hr,%"`
	if got != want {
		t.Errorf("buildTagFilter = %q, want %q", got, want)
	}

	got = buildTagFilter([]string{"hr", "legal"})
	want = `tags like "%,hr,%" and tags like "%,legal,%"`
	if got != want {
		t.Errorf("buildTagFilter = %q, want %q", got, want)
	}
}
