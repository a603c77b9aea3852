package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"voice-assistant/internal/voicecall/processor"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/twiml"
)

// apologyMarkup is served when rendering itself fails.
const apologyMarkup = `<?xml version="1.0" encoding="UTF-8"?><Response><Say>Sorry, an error occurred.</Say></Response>`

// render turns a provider neutral reply into TwiML.
func (h *Handler) render(c *gin.Context, callSID string, reply processor.Reply) (string, error) {
	elements := make([]twiml.Element, 0, len(reply.Instructions))
	for _, in := range reply.Instructions {
		switch in.Kind {
		case processor.InstructionSay:
			elements = append(elements, &twiml.VoiceSay{Message: in.Text})

		case processor.InstructionPlay:
			audioURL, err := h.audioURL(c, in.AudioCallSID)
			if err != nil {
				return "", err
			}
			elements = append(elements, &twiml.VoicePlay{Url: audioURL})

		case processor.InstructionGather:
			gather := &twiml.VoiceGather{
				Action:    in.Action,
				Method:    http.MethodPost,
				NumDigits: strconv.Itoa(in.NumDigits),
				Timeout:   seconds(in.Timeout),
			}
			if in.Text != "" {
				gather.InnerElements = []twiml.Element{&twiml.VoiceSay{Message: in.Text}}
			}
			elements = append(elements, gather)

		case processor.InstructionRecord:
			elements = append(elements, &twiml.VoiceRecord{
				Action:    in.Action,
				Method:    http.MethodPost,
				Timeout:   seconds(in.Timeout),
				MaxLength: seconds(in.MaxLength),
				PlayBeep:  "true",
			})

		case processor.InstructionRedirect:
			elements = append(elements, &twiml.VoiceRedirect{Url: in.Action, Method: http.MethodPost})

		default:
			return "", fmt.Errorf("unknown instruction %q for call %s", in.Kind, callSID)
		}
	}
	return twiml.Voice(elements)
}

// audioURL builds the absolute link the provider fetches a reply from. The base is the
// configured public URL, or the scheme and host the webhook arrived on.
func (h *Handler) audioURL(c *gin.Context, callSID string) (string, error) {
	base := h.publicBaseURL
	if base == "" {
		base = requestBaseURL(c)
	}

	link := strings.TrimRight(base, "/") + "/audio/" + url.PathEscape(callSID)

	token, err := h.signer.Sign(callSID)
	if err != nil {
		return "", fmt.Errorf("failed to sign audio url: %w", err)
	}
	if token != "" {
		link += "?token=" + url.QueryEscape(token)
	}
	return link, nil
}

func requestBaseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}

// seconds formats d as whole seconds, rounding up and never below one.
func seconds(d time.Duration) string {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
