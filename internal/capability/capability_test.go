package capability_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/ctxpack/internal/capability"
)

// fakeSource implements capability.MetadataSource.
type fakeSource struct {
	mu    sync.Mutex
	md    *capability.ModelMetadata
	err   error
	calls int
}

func (f *fakeSource) ModelMetadata(_ context.Context, _, _ string) (*capability.ModelMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.md == nil {
		return nil, f.err
	}
	md := *f.md
	return &md, f.err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memCache implements capability.MetadataCache.
type memCache struct {
	mu sync.Mutex
	m  map[string]capability.ModelMetadata
}

func (c *memCache) Get(_ context.Context, model string) (*capability.ModelMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	md, ok := c.m[model]
	if !ok {
		return nil, nil
	}
	return &md, nil
}

func (c *memCache) Put(_ context.Context, md capability.ModelMetadata) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = make(map[string]capability.ModelMetadata)
	}
	c.m[md.ID] = md
	return nil
}

func (c *memCache) PutAll(ctx context.Context, models []capability.ModelMetadata) error {
	for _, md := range models {
		_ = c.Put(ctx, md)
	}
	return nil
}

// catalogSource implements capability.CatalogSource.
type catalogSource struct {
	fakeSource
	models []capability.ModelMetadata

	catalogCalls int
}

func (c *catalogSource) Catalog(context.Context, string) ([]capability.ModelMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalogCalls++
	return append([]capability.ModelMetadata(nil), c.models...), nil
}

func (c *catalogSource) CatalogCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.catalogCalls
}

func boolPtr(b bool) *bool { return &b }

func TestParseSelector(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want capability.Selector
	}{
		{"openrouter/openai/gpt-4o", capability.Selector{Provider: "openrouter", Model: "openai/gpt-4o"}},
		{"Ollama/llama3", capability.Selector{Provider: "ollama", Model: "llama3"}},
		{"gpt-4o", capability.Selector{Model: "gpt-4o"}},
		{" anthropic/claude-opus-4 ", capability.Selector{Provider: "anthropic", Model: "claude-opus-4"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := capability.ParseSelector(tt.in); got != tt.want {
				t.Errorf("ParseSelector(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestProviderDefault(t *testing.T) {
	t.Parallel()

	tests := []struct {
		provider string
		vision   bool
		pdf      bool
		audio    bool
	}{
		{"ollama", false, false, false},
		{"lmstudio", false, false, false},
		{"unknown-vendor", false, false, false},
		{"", false, false, false},
		{"openrouter", false, false, false},
		{"openai", true, false, false},
		{"anthropic", true, true, false},
		{"google", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Parallel()
			c := capability.ProviderDefault(tt.provider)
			if !c.SupportsText {
				t.Error("every default must support text")
			}
			if c.SupportsVision != tt.vision || c.SupportsPDFNative != tt.pdf || c.SupportsAudioInput != tt.audio {
				t.Errorf("ProviderDefault(%q) = %+v", tt.provider, c)
			}
			if c.SupportsImageGeneration || c.SupportsAudioOutput {
				t.Errorf("ProviderDefault(%q) claims generation: %+v", tt.provider, c)
			}
		})
	}
}

func TestFromMetadata(t *testing.T) {
	t.Parallel()

	c := capability.FromMetadata(capability.ModelMetadata{
		InputModalities:     []string{"text", "image", "file", "audio"},
		OutputModalities:    []string{"text", "image", "audio"},
		ContextLength:       1000,
		MaxCompletionTokens: 200,
	})
	want := capability.ModelCapabilities{
		SupportsText: true, SupportsVision: true, SupportsPDFNative: true, SupportsAudioInput: true,
		SupportsImageGeneration: true, SupportsAudioOutput: true,
	}
	if c.MaxInputTokens == nil || *c.MaxInputTokens != 1000 || c.MaxOutputTokens == nil || *c.MaxOutputTokens != 200 {
		t.Errorf("token ceilings = %v, %v", c.MaxInputTokens, c.MaxOutputTokens)
	}
	c.MaxInputTokens, c.MaxOutputTokens = nil, nil
	if c != want {
		t.Errorf("FromMetadata = %+v, want %+v", c, want)
	}

	textOnly := capability.FromMetadata(capability.ModelMetadata{InputModalities: []string{"text"}})
	if textOnly != capability.TextOnly() {
		t.Errorf("text-only metadata = %+v", textOnly)
	}
	if empty := capability.FromMetadata(capability.ModelMetadata{}); !empty.SupportsText {
		t.Error("metadata without modalities should still support text")
	}
}

func TestParseOverrides(t *testing.T) {
	t.Parallel()

	data := []byte(`{
		// local tweaks
		"my-model": {"supportsPdfNative": true, "maxInputTokens": 4096,},
	}`)
	o, err := capability.ParseOverrides(data)
	if err != nil {
		t.Fatalf("ParseOverrides: %v", err)
	}
	got := o["my-model"].Apply(capability.TextOnly())
	if !got.SupportsPDFNative || !got.SupportsText || got.SupportsVision {
		t.Errorf("applied = %+v", got)
	}
	if got.MaxInputTokens == nil || *got.MaxInputTokens != 4096 {
		t.Errorf("MaxInputTokens = %v", got.MaxInputTokens)
	}

	bad, err := capability.ParseOverrides([]byte(`{"my-model": [`))
	if err == nil {
		t.Error("malformed overrides should return an error")
	}
	if bad == nil || len(bad) != 0 {
		t.Errorf("malformed overrides = %v, want empty", bad)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	o, err := capability.LoadOverrides(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || len(o) != 0 {
		t.Errorf("missing file: overrides=%v err=%v", o, err)
	}

	path := filepath.Join(t.TempDir(), "caps.json")
	if err := os.WriteFile(path, []byte(`{"m": {"supportsVision": false}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	o, err = capability.LoadOverrides(path)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if v := o["m"].SupportsVision; v == nil || *v {
		t.Errorf("override = %+v", o["m"])
	}
}

func TestResolver_OverrideShortCircuits(t *testing.T) {
	t.Parallel()

	src := &fakeSource{md: &capability.ModelMetadata{
		ID:              "my-model",
		InputModalities: []string{"text", "image"},
	}}
	r := capability.NewResolver(capability.Config{}, src, nil, nil)
	r.SetOverrides(capability.Overrides{
		"my-model": {SupportsPDFNative: boolPtr(true)},
	})

	res := r.Resolve(context.Background(), capability.Selector{Provider: "openrouter", Model: "my-model"}, "key")

	if !res.Capabilities.SupportsPDFNative {
		t.Error("override value must win")
	}
	if res.Source != capability.SourceOverride {
		t.Errorf("Source = %q, want override", res.Source)
	}
	if src.Calls() != 0 {
		t.Errorf("remote lookup called %d times, want 0", src.Calls())
	}
	if res.Capabilities.SupportsVision {
		t.Error("override merges over the provider default, not remote metadata")
	}
}

func TestResolver_OverrideFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "caps.jsonc")
	if err := os.WriteFile(path, []byte(`{"anthropic/custom": {"supportsVision": false}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	r := capability.NewResolver(capability.Config{OverridesPath: path}, nil, nil, nil)

	res := r.Resolve(context.Background(), capability.ParseSelector("anthropic/custom"), "")
	if res.Source != capability.SourceOverride {
		t.Fatalf("Source = %q, want override", res.Source)
	}
	if res.Capabilities.SupportsVision || !res.Capabilities.SupportsPDFNative {
		t.Errorf("caps = %+v, want anthropic default without vision", res.Capabilities)
	}

	if err := os.WriteFile(path, []byte(`{not json`), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := r.ReloadOverrides(); err == nil {
		t.Error("ReloadOverrides should report a malformed file")
	}
	if res := r.Resolve(context.Background(), capability.ParseSelector("anthropic/custom"), ""); res.Source != capability.SourceDefault {
		t.Errorf("after malformed reload Source = %q, want default", res.Source)
	}
}

func TestResolver_StaticBeforeRemote(t *testing.T) {
	t.Parallel()

	src := &fakeSource{}
	r := capability.NewResolver(capability.Config{}, src, nil, nil)

	res := r.Resolve(context.Background(), capability.ParseSelector("openrouter/openai/gpt-4o"), "")
	if res.Source != capability.SourceStatic || !res.Capabilities.SupportsVision {
		t.Errorf("res = %+v", res)
	}
	if src.Calls() != 0 {
		t.Errorf("remote called %d times", src.Calls())
	}
}

func TestResolver_StaticResultsAreIndependent(t *testing.T) {
	t.Parallel()

	r := capability.NewResolver(capability.Config{}, nil, nil, nil)
	sel := capability.ParseSelector("openai/gpt-4o")

	first := r.Capabilities(context.Background(), sel, "")
	if first.MaxInputTokens == nil || first.MaxOutputTokens == nil {
		t.Fatalf("static entry lacks token ceilings: %+v", first)
	}
	want := *first.MaxInputTokens
	*first.MaxInputTokens = 1
	*first.MaxOutputTokens = 1

	second := r.Capabilities(context.Background(), sel, "")
	if *second.MaxInputTokens != want || *second.MaxOutputTokens == 1 {
		t.Errorf("second lookup sees the first caller's edit: in=%d out=%d", *second.MaxInputTokens, *second.MaxOutputTokens)
	}
}

func TestResolver_Remote(t *testing.T) {
	t.Parallel()

	src := &fakeSource{md: &capability.ModelMetadata{
		ID:              "acme/vision-1",
		InputModalities: []string{"text", "image"},
		ContextLength:   32000,
	}}
	cache := &memCache{}
	r := capability.NewResolver(capability.Config{}, src, cache, nil)

	sel := capability.ParseSelector("openrouter/acme/vision-1")
	for range 2 {
		res := r.Resolve(context.Background(), sel, "")
		if res.Source != capability.SourceRemote || !res.Capabilities.SupportsVision {
			t.Fatalf("res = %+v", res)
		}
		if res.Capabilities.InputTokens(0) != 32000 {
			t.Errorf("InputTokens = %d", res.Capabilities.InputTokens(0))
		}
	}
	if src.Calls() != 1 {
		t.Errorf("remote called %d times, want 1 (second from cache)", src.Calls())
	}
	if md, _ := cache.Get(context.Background(), "acme/vision-1"); md == nil || md.FetchedAt.IsZero() {
		t.Errorf("cached = %+v", md)
	}
}

func TestResolver_CatalogFetchFillsCache(t *testing.T) {
	t.Parallel()

	src := &catalogSource{models: []capability.ModelMetadata{
		{ID: "acme/vision-1", InputModalities: []string{"text", "image"}},
		{ID: "acme/text-1", InputModalities: []string{"text"}},
		{ID: "acme/pdf-1", InputModalities: []string{"text", "file"}},
	}}
	cache := &memCache{}
	r := capability.NewResolver(capability.Config{}, src, cache, nil)

	for _, model := range []string{"acme/vision-1", "acme/text-1", "acme/pdf-1"} {
		res := r.Resolve(context.Background(), capability.ParseSelector("openrouter/"+model), "")
		if res.Source != capability.SourceRemote {
			t.Errorf("%s: source = %q, want remote", model, res.Source)
		}
	}
	if n := src.CatalogCalls(); n != 1 {
		t.Errorf("catalog fetched %d times, want 1", n)
	}
	if src.Calls() != 0 {
		t.Errorf("single-model lookups = %d, want 0", src.Calls())
	}
	if md, _ := cache.Get(context.Background(), "acme/pdf-1"); md == nil || md.FetchedAt.IsZero() {
		t.Errorf("cached pdf-1 = %+v", md)
	}

	for range 3 {
		res := r.Resolve(context.Background(), capability.ParseSelector("openrouter/acme/missing"), "")
		if res.Source != capability.SourceDefault {
			t.Errorf("missing: source = %q, want default", res.Source)
		}
	}
	if n := src.CatalogCalls(); n != 2 {
		t.Errorf("catalog fetched %d times after repeated misses, want 2", n)
	}
}

func TestResolver_RemoteOnlyForMetadataProviders(t *testing.T) {
	t.Parallel()

	src := &fakeSource{md: &capability.ModelMetadata{InputModalities: []string{"image"}}}
	r := capability.NewResolver(capability.Config{}, src, nil, nil)

	res := r.Resolve(context.Background(), capability.ParseSelector("ollama/llava"), "")
	if res.Source != capability.SourceDefault || res.Capabilities != capability.TextOnly() {
		t.Errorf("res = %+v", res)
	}
	if src.Calls() != 0 {
		t.Errorf("remote called %d times", src.Calls())
	}
}

func TestResolver_RemoteFailureFallsBack(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("boom")}
	r := capability.NewResolver(capability.Config{
		Health: capabilityHealth(time.Hour),
	}, src, nil, nil)

	sel := capability.ParseSelector("openrouter/acme/unknown")
	for range 3 {
		res := r.Resolve(context.Background(), sel, "")
		if res.Source != capability.SourceDefault || res.Capabilities != capability.TextOnly() {
			t.Fatalf("res = %+v", res)
		}
	}
	if src.Calls() != 1 {
		t.Errorf("remote called %d times, want 1 while cooling down", src.Calls())
	}
}

func TestResolver_NotFoundFallsBack(t *testing.T) {
	t.Parallel()

	r := capability.NewResolver(capability.Config{}, &fakeSource{}, nil, nil)
	res := r.Resolve(context.Background(), capability.ParseSelector("openrouter/acme/missing"), "")
	if res.Source != capability.SourceDefault {
		t.Errorf("Source = %q, want default", res.Source)
	}
}

func TestResolver_OnResolve(t *testing.T) {
	t.Parallel()

	r := capability.NewResolver(capability.Config{}, nil, nil, nil)
	var seen []capability.Source
	r.OnResolve = func(res capability.Resolution) { seen = append(seen, res.Source) }

	_ = r.Capabilities(context.Background(), capability.ParseSelector("openai/gpt-4o"), "")
	_ = r.Capabilities(context.Background(), capability.ParseSelector("openai/brand-new"), "")

	if len(seen) != 2 || seen[0] != capability.SourceStatic || seen[1] != capability.SourceDefault {
		t.Errorf("seen = %v", seen)
	}
}

func TestResolver_SourceStatus(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("boom")}
	r := capability.NewResolver(capability.Config{Health: capabilityHealth(time.Hour)}, src, nil, nil)

	st := r.SourceStatus()
	if !st.Configured || !st.Available || st.State != "healthy" {
		t.Fatalf("initial status = %+v", st)
	}

	_ = r.Resolve(context.Background(), capability.ParseSelector("openrouter/acme/unknown"), "")

	st = r.SourceStatus()
	if st.Available || st.State != "cooldown" || st.Failures != 1 {
		t.Errorf("status after failure = %+v", st)
	}
	if none := capability.NewResolver(capability.Config{}, nil, nil, nil).SourceStatus(); none.Configured {
		t.Errorf("resolver without source reports configured")
	}
}
