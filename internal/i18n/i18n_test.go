package i18n

import "testing"

func TestResolve(t *testing.T) {
	r, err := NewResolver("en")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	en := r.Resolve("en", "error.unauthorized")
	es := r.Resolve("es", "error.unauthorized")
	if en == "" || es == "" || en == es {
		t.Fatalf("expected distinct translations, got %q and %q", en, es)
	}

	// Unknown locales fall back to the default catalog.
	if got := r.Resolve("fr", "error.unauthorized"); got != en {
		t.Fatalf("fallback=%q want %q", got, en)
	}
	// Regional variants resolve to their base language.
	if got := r.Resolve("es-MX", "error.unauthorized"); got != es {
		t.Fatalf("variant=%q want %q", got, es)
	}
	// Unknown keys surface as themselves.
	if got := r.Resolve("en", "error.no_such_key"); got != "error.no_such_key" {
		t.Fatalf("unknown key=%q", got)
	}
}

func TestPickLocale(t *testing.T) {
	r, err := NewResolver("en")
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}

	cases := map[string]string{
		"":                        "en",
		"es":                      "es",
		"es-MX,es;q=0.9,en;q=0.8": "es",
		"fr-FR,fr;q=0.9":          "en",
		"fr,es;q=0.5":             "es",
		"EN-US":                   "en",
	}
	for header, want := range cases {
		if got := r.PickLocale(header); got != want {
			t.Fatalf("PickLocale(%q)=%q want %q", header, got, want)
		}
	}
}

func TestNewResolverRejectsMissingDefault(t *testing.T) {
	if _, err := NewResolver("zz"); err == nil {
		t.Fatal("expected error for default locale without a catalog")
	}
}
