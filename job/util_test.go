package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_randomizeDuration(t *testing.T) {
	for i := 0; i < 100; i++ {
		dur := randomizeDuration(5 * time.Minute)
		if dur < time.Second*285 {
			t.Errorf("randomizeDuration() = %v < %v", dur, time.Second*285)
		}
		if dur > time.Second*315 {
			t.Errorf("randomizeDuration() = %v > %v", dur, time.Second*315)
		}
	}
}

func Test_reverse(t *testing.T) {
	list := []int{1, 2, 3, 4}
	reverse(list)
	require.Equal(t, []int{4, 3, 2, 1}, list)
}

func TestRunner_pakName(t *testing.T) {
	tm := time.Date(2024, 3, 1, 12, 30, 5, 0, time.UTC)
	tests := []struct {
		template string
		want     string
	}{
		{defaultPakNameTemplate, "shop_" + "1709296205" + ".sspak"},
		{"%SITE%-%DATETIME%", "shop-20240301-123005.sspak"},
		{"backup.sspak", "backup.sspak"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			r := &Runner{config: Config{PakNameTemplate: tt.template}}
			require.Equal(t, tt.want, r.pakName("shop", tm))
		})
	}
}
