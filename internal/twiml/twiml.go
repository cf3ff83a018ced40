// Package twiml renders the call-control documents returned to the
// telephony provider.
//
// The dialect is the TwiML subset that Twilio and Exotel both accept:
//
//	<Response>
//	  <Play>data:audio/wav;base64,...</Play>
//	  <Gather action="https://host/api/call" method="POST" input="speech"
//	          speechTimeout="auto" finishOnKey="#" language="hi-IN"/>
//	</Response>
//
// Elements are always emitted in the order Say, Play, Gather, Hangup.
package twiml

import (
	"encoding/xml"
	"fmt"
)

// ContentType is the media type of every rendered document.
const ContentType = "text/xml; charset=utf-8"

// Response is the document root.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Say     *Say     `xml:"Say,omitempty"`
	Play    *Play    `xml:"Play,omitempty"`
	Gather  *Gather  `xml:"Gather,omitempty"`
	Hangup  *Hangup  `xml:"Hangup,omitempty"`
}

// Say speaks text with the provider's own synthesizer.
type Say struct {
	Language string `xml:"language,attr,omitempty"`
	Voice    string `xml:"voice,attr,omitempty"`
	Text     string `xml:",chardata"`
}

// Play plays audio from a URL or data URI.
type Play struct {
	URL string `xml:",chardata"`
}

// Gather collects caller speech and posts it to Action.
type Gather struct {
	Action        string `xml:"action,attr"`
	Method        string `xml:"method,attr"`
	Input         string `xml:"input,attr"`
	SpeechTimeout string `xml:"speechTimeout,attr"`
	FinishOnKey   string `xml:"finishOnKey,attr"`
	Language      string `xml:"language,attr,omitempty"`
}

// Hangup ends the call.
type Hangup struct{}

// NewGather returns a speech gather posting back to action.
func NewGather(action, language string) *Gather {
	return &Gather{
		Action:        action,
		Method:        "POST",
		Input:         "speech",
		SpeechTimeout: "auto",
		FinishOnKey:   "#",
		Language:      language,
	}
}

// Render serializes r with an XML declaration.
func (r *Response) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("rendering twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

// mustRender is used for documents built only from strings, which
// encoding/xml always accepts.
func mustRender(r *Response) []byte {
	b, err := r.Render()
	if err != nil {
		panic(err)
	}
	return b
}

// HangupDoc is a document with a single Hangup.
func HangupDoc() []byte {
	return mustRender(&Response{Hangup: &Hangup{}})
}

// PlayAndGather plays audioURI and then listens for the next utterance.
func PlayAndGather(audioURI, action, language string) []byte {
	return mustRender(&Response{
		Play:   &Play{URL: audioURI},
		Gather: NewGather(action, language),
	})
}

// SayAndGather speaks text and then listens for the next utterance.
func SayAndGather(text, action, language string) []byte {
	return mustRender(&Response{
		Say:    &Say{Language: language, Text: text},
		Gather: NewGather(action, language),
	})
}

// Apology speaks message and hangs up.
func Apology(message, language string) []byte {
	return mustRender(&Response{
		Say:    &Say{Language: language, Text: message},
		Hangup: &Hangup{},
	})
}

// Error is the minimal document sent with 4xx responses.
func Error(message string) []byte {
	return mustRender(&Response{
		Say:    &Say{Text: message},
		Hangup: &Hangup{},
	})
}
