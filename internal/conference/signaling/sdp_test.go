package signaling

import (
	"strings"
	"testing"
)

func TestPatchLowLatencyAudio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sdp  string
		want string
	}{
		{
			name: "single audio section",
			sdp:  "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=mid:0\r\n",
			want: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=sendrecv\r\na=ptime:20\r\na=maxptime:20\r\na=mid:0\r\n",
		},
		{
			name: "no audio section left untouched",
			sdp:  "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\n",
			want: "v=0\r\no=- 1 1 IN IP4 0.0.0.0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\n",
		},
		{
			name: "missing trailing terminator still gets one",
			sdp:  "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111",
			want: "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=sendrecv\r\na=ptime:20\r\na=maxptime:20\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := PatchLowLatencyAudio(tt.sdp)
			if got != tt.want {
				t.Errorf("PatchLowLatencyAudio() =\n%q\nwant\n%q", got, tt.want)
			}
			if !strings.HasSuffix(got, "\r\n") {
				t.Errorf("result must end in CRLF, got %q", got)
			}
		})
	}
}

func TestPatchLowLatencyAudioIdempotent(t *testing.T) {
	t.Parallel()
	sdp := "v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\na=mid:0\r\n"
	once := PatchLowLatencyAudio(sdp)
	twice := PatchLowLatencyAudio(once)
	if once != twice {
		t.Fatalf("patch not idempotent:\nonce:  %q\ntwice: %q", once, twice)
	}
}

func TestPatchLowLatencyAudioNewSectionAfterPatch(t *testing.T) {
	t.Parallel()
	// A second, distinct m=audio section introduced after patching must still
	// get its own attrs appended — idempotence only suppresses re-insertion
	// at sections that already carry them.
	patched := PatchLowLatencyAudio("v=0\r\nm=audio 9 UDP/TLS/RTP/SAVPF 111\r\n")
	withNewSection := patched + "m=audio 9 UDP/TLS/RTP/SAVPF 112\r\n"
	got := PatchLowLatencyAudio(withNewSection)
	if strings.Count(got, "a=sendrecv") != 2 {
		t.Fatalf("expected attrs appended for the new m=audio section, got %q", got)
	}
}
