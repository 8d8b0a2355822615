package resolver

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/edgard/tgcollector/internal/errs"
	"github.com/edgard/tgcollector/internal/platform"
	"github.com/edgard/tgcollector/internal/platform/platformtest"
)

// withClient runs fn on a fresh session of the fake.
func withClient(t *testing.T, f *platformtest.Fake, fn func(ctx context.Context, c platform.Client) error) {
	t.Helper()
	if _, err := f.Run(context.Background(), platform.Credentials{}, nil, fn); err != nil {
		t.Fatal(err)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"-1001234567890", 1234567890, false},
		{"1234567890", 1234567890, false},
		{" -1001234567890 ", 1234567890, false},
		{"-1009", -1009, false},
		{"-1005550000", -1005550000, false},
		{"-4242", -4242, false},
		{"-100", -100, false},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Normalize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestResolveProbeOrder(t *testing.T) {
	t.Parallel()

	const id = 1234567890
	tests := []struct {
		name       string
		register   platform.RefKind
		wantProbes []platform.RefKind
	}{
		{"channel", platform.RefChannel, []platform.RefKind{platform.RefChannel}},
		{"chat", platform.RefChat, []platform.RefKind{platform.RefChannel, platform.RefChat}},
		{"raw", platform.RefRaw, []platform.RefKind{platform.RefChannel, platform.RefChat, platform.RefRaw}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fake := platformtest.New()
			want := &platform.Entity{Kind: platform.EntityChannel, ID: id, Title: "target"}
			fake.Entities[platform.EntityRef{Kind: tt.register, ID: id}] = want

			r := New(nil)
			withClient(t, fake, func(ctx context.Context, c platform.Client) error {
				got, err := r.Resolve(ctx, c, "-1001234567890")
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				if got != want {
					t.Fatalf("Resolve returned %+v", got)
				}
				return nil
			})

			var kinds []platform.RefKind
			for _, ref := range fake.Resolves {
				if ref.ID != id {
					t.Errorf("probe used id %d, want prefix stripped to %d", ref.ID, id)
				}
				kinds = append(kinds, ref.Kind)
			}
			if !slices.Equal(kinds, tt.wantProbes) {
				t.Errorf("probes = %v, want %v", kinds, tt.wantProbes)
			}
		})
	}
}

func TestResolveUnprefixedSkipsStrip(t *testing.T) {
	t.Parallel()
	fake := platformtest.New()
	fake.AddChannel(1234567890, "plain", "")

	r := New(nil)
	withClient(t, fake, func(ctx context.Context, c platform.Client) error {
		_, err := r.Resolve(ctx, c, "1234567890")
		return err
	})
	if fake.Resolves[0] != (platform.EntityRef{Kind: platform.RefChannel, ID: 1234567890}) {
		t.Fatalf("first probe = %+v", fake.Resolves[0])
	}
}

func TestResolveBasicGroupID(t *testing.T) {
	t.Parallel()
	fake := platformtest.New()
	chat := &platform.Entity{Kind: platform.EntityChat, ID: 4242}
	fake.Entities[platform.EntityRef{Kind: platform.RefChat, ID: 4242}] = chat

	r := New(nil)
	withClient(t, fake, func(ctx context.Context, c platform.Client) error {
		got, err := r.ResolveID(ctx, c, -4242)
		if err != nil || got != chat {
			t.Fatalf("ResolveID(-4242) = %+v, %v", got, err)
		}
		return nil
	})
}

func TestResolveIDChatWithChannelLikeDigits(t *testing.T) {
	t.Parallel()
	fake := platformtest.New()
	chat := &platform.Entity{Kind: platform.EntityChat, ID: 1005550000, Title: "basic"}
	fake.Entities[platform.EntityRef{Kind: platform.RefChat, ID: 1005550000}] = chat

	r := New(nil)
	withClient(t, fake, func(ctx context.Context, c platform.Client) error {
		got, err := r.ResolveID(ctx, c, chat.MarkedID())
		if err != nil || got != chat {
			t.Fatalf("ResolveID(%d) = %+v, %v", chat.MarkedID(), got, err)
		}
		return nil
	})

	for _, ref := range fake.Resolves {
		if ref.ID != 1005550000 {
			t.Errorf("resolve used id %d, want 1005550000", ref.ID)
		}
	}
	if last := fake.Resolves[len(fake.Resolves)-1]; last.Kind != platform.RefChat {
		t.Errorf("resolved with %v, want chat", last.Kind)
	}
}

func TestResolveIDMarkedChannel(t *testing.T) {
	t.Parallel()
	fake := platformtest.New()
	fake.AddChannel(1234567890, "marked", "")

	r := New(nil)
	withClient(t, fake, func(ctx context.Context, c platform.Client) error {
		got, err := r.ResolveID(ctx, c, -1001234567890)
		if err != nil || got.ID != 1234567890 {
			t.Fatalf("ResolveID(-1001234567890) = %+v, %v", got, err)
		}
		return nil
	})
	if fake.Resolves[0] != (platform.EntityRef{Kind: platform.RefChannel, ID: 1234567890}) {
		t.Fatalf("first resolve = %+v", fake.Resolves[0])
	}
}

func TestResolveAllProbesFail(t *testing.T) {
	t.Parallel()
	fake := platformtest.New()

	r := New(nil)
	withClient(t, fake, func(ctx context.Context, c platform.Client) error {
		_, err := r.Resolve(ctx, c, "-1005550000")
		if !errors.Is(err, ErrEntityUnresolved) {
			t.Fatalf("error = %v, want ErrEntityUnresolved", err)
		}
		if errs.Code(err) != errs.CodeEntityResolution {
			t.Errorf("code = %s", errs.Code(err))
		}

		var unresolved *UnresolvedError
		if !errors.As(err, &unresolved) {
			t.Fatalf("error %T is not *UnresolvedError", err)
		}
		if len(unresolved.Attempts) != 3 {
			t.Fatalf("attempts = %d, want 3", len(unresolved.Attempts))
		}
		for i, kind := range probeOrder {
			if unresolved.Attempts[i].Kind != kind || unresolved.Attempts[i].Err == nil {
				t.Errorf("attempt %d = %+v", i, unresolved.Attempts[i])
			}
		}
		return nil
	})
}

func TestResolveCachesWinningStrategy(t *testing.T) {
	t.Parallel()
	fake := platformtest.New()
	chatRef := platform.EntityRef{Kind: platform.RefChat, ID: 777}
	fake.Entities[chatRef] = &platform.Entity{Kind: platform.EntityChat, ID: 777}

	r := New(nil)
	withClient(t, fake, func(ctx context.Context, c platform.Client) error {
		if _, err := r.Resolve(ctx, c, "777"); err != nil {
			t.Fatal(err)
		}
		before := len(fake.Resolves)
		if _, err := r.Resolve(ctx, c, "777"); err != nil {
			t.Fatal(err)
		}
		if probes := fake.Resolves[before:]; len(probes) != 1 || probes[0] != chatRef {
			t.Fatalf("cached resolve probed %v", probes)
		}

		// The chat migrates; the stale strategy is dropped and probing restarts.
		delete(fake.Entities, chatRef)
		fake.Entities[platform.EntityRef{Kind: platform.RefChannel, ID: 777}] = &platform.Entity{Kind: platform.EntityChannel, ID: 777}
		got, err := r.Resolve(ctx, c, "777")
		if err != nil || got.Kind != platform.EntityChannel {
			t.Fatalf("after migration Resolve = %+v, %v", got, err)
		}
		return nil
	})
}
