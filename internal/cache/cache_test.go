package cache

import (
	"testing"
	"time"
)

func TestKeysAreSelectionSensitive(t *testing.T) {
	t.Run("voxelInKey", func(t *testing.T) {
		a := ParameterMapKey("tofts", "ktrans", 5, 5, 640, 480, "viridis")
		b := ParameterMapKey("tofts", "ktrans", 5, 6, 640, 480, "viridis")
		if a == b {
			t.Fatalf("crosshair voxel must change the key: %q", a)
		}
	})

	t.Run("modelOrderInKey", func(t *testing.T) {
		a := CurveKey(4, 4, []string{"tofts", "etm"}, 640, 480)
		b := CurveKey(4, 4, []string{"etm", "tofts"}, 640, 480)
		if a == b {
			t.Fatalf("selection order drives colors and must change the key: %q", a)
		}
	})

	t.Run("figureSizeInKey", func(t *testing.T) {
		if BestModelKey(640, 480) == BestModelKey(320, 240) {
			t.Fatal("figure size must change the key")
		}
		if ResidualMapKey("2cxm", 640, 480, "gray") == ResidualMapKey("2cxm", 640, 480, "viridis") {
			t.Fatal("colormap must change the key")
		}
	})
}

func TestManagerRoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		ImageCacheSizeMB: 8,
		ImageTTL:         time.Minute,
		DerivedCacheSize: 16,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	defer m.Close()

	if _, ok := m.GetImage("missing"); ok {
		t.Error("unexpected hit for missing image")
	}

	key := BestModelKey(640, 480)
	if err := m.SetImage(key, []byte("png-bytes")); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
	got, ok := m.GetImage(key)
	if !ok || string(got) != "png-bytes" {
		t.Fatalf("GetImage = %q, %v", got, ok)
	}

	m.SetDerived("bounds", []byte(`{"lo":0,"hi":1}`))
	if got, ok := m.GetDerived("bounds"); !ok || string(got) != `{"lo":0,"hi":1}` {
		t.Fatalf("GetDerived = %q, %v", got, ok)
	}

	stats := m.Stats()
	if stats["image_cache_len"].(int) != 1 {
		t.Errorf("stats = %v", stats)
	}
}
