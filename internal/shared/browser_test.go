package shared

import (
	"slices"
	"testing"
)

func TestBrowserCommand(t *testing.T) {
	const url = "https://app.plex.tv/auth#?code=abc"

	tc := []struct {
		goos    string
		want    []string
		wantErr bool
	}{
		{goos: "darwin", want: []string{"open", url}},
		{goos: "linux", want: []string{"xdg-open", url}},
		{goos: "windows", want: []string{"rundll32", "url.dll,FileProtocolHandler", url}},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			got, err := browserCommand(tt.goos, url)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("browserCommand() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("browserCommand() = %v, want %v", got, tt.want)
			}
		})
	}

	t.Run("OpenBrowser unsupported", func(t *testing.T) {
		orig := getRuntime
		getRuntime = func() string { return "plan9" }
		defer func() { getRuntime = orig }()

		if err := OpenBrowser(url); err == nil {
			t.Error("expected error on unsupported platform")
		}
	})
}
