package voice

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

const (
	opusPayloadType = 111
	opusFmtp        = "minptime=10;useinbandfec=1"
	audioMid        = "0"
)

// joinParams is the JSON Telegram expects in phone.joinGroupCall params.
type joinParams struct {
	Ufrag        string        `json:"ufrag"`
	Pwd          string        `json:"pwd"`
	Fingerprints []fingerprint `json:"fingerprints"`
	SSRC         int32         `json:"ssrc"`
}

type fingerprint struct {
	Hash        string `json:"hash"`
	Setup       string `json:"setup"`
	Fingerprint string `json:"fingerprint"`
}

// connectionParams is the JSON carried by updateGroupCallConnection.
type connectionParams struct {
	Transport *transport `json:"transport"`
}

type transport struct {
	Ufrag        string        `json:"ufrag"`
	Pwd          string        `json:"pwd"`
	Fingerprints []fingerprint `json:"fingerprints"`
	Candidates   []candidate   `json:"candidates"`
}

type candidate struct {
	Foundation flexString `json:"foundation"`
	Component  flexString `json:"component"`
	Protocol   flexString `json:"protocol"`
	Priority   flexString `json:"priority"`
	IP         flexString `json:"ip"`
	Port       flexString `json:"port"`
	Type       flexString `json:"type"`
	Generation flexString `json:"generation"`
}

// flexString decodes a JSON string or number into its textual form.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// buildJoinParams extracts our ICE credentials and DTLS fingerprint from the
// local offer and packs them, with the audio SSRC, for Telegram.
func buildJoinParams(localSDP string, ssrc uint32) (string, error) {
	var sd sdp.SessionDescription
	if err := sd.Unmarshal([]byte(localSDP)); err != nil {
		return "", fmt.Errorf("parse local sdp: %w", err)
	}

	lookup := func(key string) string {
		if v, ok := sd.Attribute(key); ok {
			return v
		}
		for _, md := range sd.MediaDescriptions {
			if v, ok := md.Attribute(key); ok {
				return v
			}
		}
		return ""
	}

	ufrag, pwd, fp := lookup("ice-ufrag"), lookup("ice-pwd"), lookup("fingerprint")
	if ufrag == "" || pwd == "" || fp == "" {
		return "", errors.New("local sdp lacks ice credentials or fingerprint")
	}
	hash, value, ok := strings.Cut(fp, " ")
	if !ok {
		return "", fmt.Errorf("malformed fingerprint %q", fp)
	}

	b, err := json.Marshal(joinParams{
		Ufrag:        ufrag,
		Pwd:          pwd,
		Fingerprints: []fingerprint{{Hash: hash, Setup: "active", Fingerprint: value}},
		SSRC:         int32(ssrc),
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// buildAnswerSDP turns Telegram's transport description into the SDP answer
// for our send-only audio offer. The group call server is an ICE-lite DTLS server.
func buildAnswerSDP(params string) (string, error) {
	var cp connectionParams
	if err := json.Unmarshal([]byte(params), &cp); err != nil {
		return "", fmt.Errorf("decode connection params: %w", err)
	}
	t := cp.Transport
	if t == nil || t.Ufrag == "" || t.Pwd == "" {
		return "", errors.New("connection params carry no transport")
	}
	if len(t.Fingerprints) == 0 {
		return "", errors.New("transport has no dtls fingerprint")
	}
	if len(t.Candidates) == 0 {
		return "", errors.New("transport has no ice candidates")
	}

	sd, err := sdp.NewJSEPSessionDescription(false)
	if err != nil {
		return "", err
	}
	md := sdp.NewJSEPMediaDescription("audio", []string{}).
		WithCodec(opusPayloadType, "opus", 48000, 2, opusFmtp).
		WithValueAttribute(sdp.AttrKeyMID, audioMid).
		WithICECredentials(t.Ufrag, t.Pwd).
		WithPropertyAttribute(sdp.AttrKeyRTCPMux).
		WithValueAttribute(sdp.AttrKeyConnectionSetup, "passive").
		WithPropertyAttribute(sdp.AttrKeyRecvOnly)
	for _, f := range t.Fingerprints {
		md = md.WithFingerprint(strings.ToLower(f.Hash), f.Fingerprint)
	}
	for _, c := range t.Candidates {
		md = md.WithCandidate(c.String())
	}
	md = md.WithPropertyAttribute(sdp.AttrKeyEndOfCandidates)

	sd = sd.
		WithValueAttribute(sdp.AttrKeyGroup, "BUNDLE "+audioMid).
		WithPropertyAttribute(sdp.AttrKeyICELite).
		WithMedia(md)

	b, err := sd.Marshal()
	if err != nil {
		return "", fmt.Errorf("marshal answer: %w", err)
	}
	return string(b), nil
}

func (c candidate) String() string {
	gen := string(c.Generation)
	if gen == "" {
		gen = "0"
	}
	comp := string(c.Component)
	if _, err := strconv.Atoi(comp); err != nil {
		comp = "1"
	}
	return fmt.Sprintf("%s %s %s %s %s %s typ %s generation %s",
		c.Foundation, comp, c.Protocol, c.Priority, c.IP, c.Port, c.Type, gen)
}
