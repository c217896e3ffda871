package localization

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogs(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "New Complaint Assigned: CMP-1", l.Render("en", "assignment_subject", map[string]string{"number": "CMP-1"}))
	assert.Contains(t, l.Render("uk", "assignment_subject", map[string]string{"number": "CMP-1"}), "CMP-1")
}

func TestGetString_Fallbacks(t *testing.T) {
	l, err := NewLocalizer(fstest.MapFS{
		"en.json":  {Data: []byte(`{"hello": "Hello", "bye": "Bye"}`)},
		"uk.json":  {Data: []byte(`{"hello": "Привіт"}`)},
		"notes.md": {Data: []byte(`ignored`)},
	})
	require.NoError(t, err)

	assert.Equal(t, "Привіт", l.GetString("uk", "hello"))
	assert.Equal(t, "Bye", l.GetString("uk", "bye"), "missing key falls back to English")
	assert.Equal(t, "Hello", l.GetString("de", "hello"), "unknown language falls back to English")
	assert.Equal(t, "missing", l.GetString("en", "missing"), "unknown key returns the key")
}

func TestNewLocalizer_BadCatalog(t *testing.T) {
	_, err := NewLocalizer(fstest.MapFS{"en.json": {Data: []byte(`{not json`)}})
	assert.Error(t, err)
}

func TestDefaultCatalogs_SameKeys(t *testing.T) {
	l, err := Default()
	require.NoError(t, err)

	for lang, catalog := range l.translations {
		for key := range l.translations[DefaultLang] {
			assert.Contains(t, catalog, key, "%s catalog is missing %q", lang, key)
		}
	}
}
