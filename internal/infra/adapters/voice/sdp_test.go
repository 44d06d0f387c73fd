//go:build !integration

package voice

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pion/sdp/v3"
)

const localOffer = "v=0\r\n" +
	"o=- 4215775240449105457 2 IN IP4 127.0.0.1\r\n" +
	"s=-\r\n" +
	"t=0 0\r\n" +
	"a=group:BUNDLE 0\r\n" +
	"m=audio 9 UDP/TLS/RTP/SAVPF 111\r\n" +
	"c=IN IP4 0.0.0.0\r\n" +
	"a=setup:actpass\r\n" +
	"a=mid:0\r\n" +
	"a=ice-ufrag:Abcd\r\n" +
	"a=ice-pwd:SomeLongIcePassword0123\r\n" +
	"a=fingerprint:sha-256 0A:1B:2C:3D\r\n" +
	"a=rtpmap:111 opus/48000/2\r\n" +
	"a=sendrecv\r\n"

func TestBuildJoinParams(t *testing.T) {
	raw, err := buildJoinParams(localOffer, 3_000_000_000)
	if err != nil {
		t.Fatalf("buildJoinParams: %v", err)
	}
	var got joinParams
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatal(err)
	}
	want := joinParams{
		Ufrag:        "Abcd",
		Pwd:          "SomeLongIcePassword0123",
		Fingerprints: []fingerprint{{Hash: "sha-256", Setup: "active", Fingerprint: "0A:1B:2C:3D"}},
		SSRC:         int32(-1294967296),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildJoinParams_MissingCredentials(t *testing.T) {
	offer := strings.Replace(localOffer, "a=ice-pwd:SomeLongIcePassword0123\r\n", "", 1)
	if _, err := buildJoinParams(offer, 1); err == nil {
		t.Fatal("expected error")
	}
}

const serverTransport = `{"transport":{"ufrag":"srv","pwd":"srvpassword",
	"fingerprints":[{"hash":"SHA-256","setup":"passive","fingerprint":"AA:BB:CC"}],
	"candidates":[
		{"generation":"0","component":"1","protocol":"udp","port":"32000","ip":"91.108.9.1","foundation":"1","id":"x","priority":"2130706431","type":"host","network":"1"},
		{"generation":0,"component":1,"protocol":"tcp","port":32001,"ip":"91.108.9.1","foundation":"2","priority":2130706430,"type":"host"}
	]},"audio":{"payload-types":[]}}`

func TestBuildAnswerSDP(t *testing.T) {
	answer, err := buildAnswerSDP(serverTransport)
	if err != nil {
		t.Fatalf("buildAnswerSDP: %v", err)
	}

	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(answer)); err != nil {
		t.Fatalf("answer does not parse: %v\n%s", err, answer)
	}
	if _, ok := sd.Attribute(sdp.AttrKeyICELite); !ok {
		t.Error("answer should declare ice-lite")
	}
	if len(sd.MediaDescriptions) != 1 {
		t.Fatalf("media sections = %d", len(sd.MediaDescriptions))
	}
	md := sd.MediaDescriptions[0]
	checks := map[string]string{
		"mid":         "0",
		"ice-ufrag":   "srv",
		"ice-pwd":     "srvpassword",
		"setup":       "passive",
		"fingerprint": "sha-256 AA:BB:CC",
		"rtpmap":      "111 opus/48000/2",
	}
	for k, want := range checks {
		if got, _ := md.Attribute(k); got != want {
			t.Errorf("a=%s: got %q, want %q", k, got, want)
		}
	}
	if _, ok := md.Attribute("recvonly"); !ok {
		t.Error("answer should be recvonly")
	}

	var cands []string
	for _, a := range md.Attributes {
		if a.Key == "candidate" {
			cands = append(cands, a.Value)
		}
	}
	want := []string{
		"1 1 udp 2130706431 91.108.9.1 32000 typ host generation 0",
		"2 1 tcp 2130706430 91.108.9.1 32001 typ host generation 0",
	}
	if diff := cmp.Diff(want, cands); diff != "" {
		t.Fatalf("candidates mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildAnswerSDP_Rejects(t *testing.T) {
	for name, in := range map[string]string{
		"not json":        `{`,
		"no transport":    `{"audio":{}}`,
		"no fingerprints": `{"transport":{"ufrag":"u","pwd":"p","fingerprints":[],"candidates":[{"ip":"1.1.1.1"}]}}`,
		"no candidates":   `{"transport":{"ufrag":"u","pwd":"p","fingerprints":[{"hash":"sha-256","fingerprint":"AA"}],"candidates":[]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := buildAnswerSDP(in); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("http://x/a.mp3", "")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-i http://x/a.mp3", "-c:a libopus", "-b:a 128k", "-f ogg pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
}
