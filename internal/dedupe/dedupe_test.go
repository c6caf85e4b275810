package dedupe

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bbb-scraper/internal/model"
)

func rec(id, phone, name string) *model.Business {
	return &model.Business{ID: id, Phone: model.StrPtr(phone), Name: name}
}

func TestRecords_FirstSeenWins(t *testing.T) {
	in := []*model.Business{
		rec("123", "+14105550101", "first"),
		rec("456", "", "other"),
		rec("123", "+19999999999", "second"),
	}

	out := Records(in)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].Name)
	assert.Equal(t, "+14105550101", model.Str(out[0].Phone), "fields are not merged")
	assert.Equal(t, "other", out[1].Name)
}

func TestRecords_PhoneFallback(t *testing.T) {
	in := []*model.Business{
		rec("", "+14105550101", "a"),
		rec("", "+14105550101", "b"),
		rec("", "+14105550102", "c"),
		// An ID-keyed record never collides with a phone-keyed one.
		rec("777", "+14105550101", "d"),
	}

	out := Records(in)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "c", "d"}, names(out))
}

func TestRecords_KeylessKept(t *testing.T) {
	in := []*model.Business{rec("", "", "x"), rec("", "", "x"), nil}
	assert.Len(t, Records(in), 2)
}

func TestRecords_Empty(t *testing.T) {
	assert.Empty(t, Records(nil))
}

func TestRecords_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		n := r.IntN(40)
		in := make([]*model.Business, n)
		for i := range in {
			id, phone := "", ""
			if r.IntN(3) > 0 {
				id = fmt.Sprint(r.IntN(8))
			}
			if r.IntN(2) == 0 {
				phone = fmt.Sprintf("+1410555%04d", r.IntN(5))
			}
			in[i] = rec(id, phone, fmt.Sprint(i))
		}

		out := Records(in)
		assert.LessOrEqual(t, len(out), len(in))

		keys := map[string]bool{}
		for _, b := range out {
			key, ok := b.DedupeKey()
			if !ok {
				continue
			}
			assert.False(t, keys[key], "duplicate key %s", key)
			keys[key] = true
		}
	}
}

func names(bs []*model.Business) []string {
	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = b.Name
	}
	return out
}
