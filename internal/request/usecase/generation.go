package usecase

import (
	"context"
	"strings"

	requestdomain "fupm-backend/internal/request/domain"
	"fupm-backend/internal/request/repository"

	"go.uber.org/zap"
)

const defaultFollowupSubject = "Re: Follow-up"

// ResolvedVoice is what generation needs to know about a voice.
type ResolvedVoice struct {
	Name         string
	Description  string
	NoEscalation bool
}

// builtinVoices is used only when the catalog has no entry for a name.
var builtinVoices = map[string]ResolvedVoice{
	"assistant": {
		Name:        "assistant",
		Description: "Polite and helpful, like a friendly assistant. Warm but professional. Simply checking in on the status with a gentle reminder.",
	},
	"accountant": {
		Name:        "accountant",
		Description: "Business-like and matter-of-fact. Focused on numbers and dates. References invoice numbers, due dates, and payment terms. Neutral and transactional.",
	},
	"attorney": {
		Name:        "attorney",
		Description: "Formal and direct. References obligations, agreements, and potential next steps. Professional but makes it clear this is a serious matter that requires attention.",
	},
	"asshole": {
		Name:        "asshole",
		Description: "Blunt, impatient, and fed up. No pleasantries. Makes it clear you're done waiting and this is unacceptable. Borderline rude but still professional enough to send.",
	},
	"professional": {
		Name:        "professional",
		Description: "Polite and business-like. Maintains professionalism while being clear about the request.",
	},
	"friendly": {
		Name:         "friendly",
		Description:  "Warm and personable. Uses a conversational tone while still being clear about needing payment.",
		NoEscalation: true,
	},
	"firm": {
		Name:        "firm",
		Description: "Direct and assertive. Makes it clear this is important and needs attention, without being rude.",
	},
	"aggressive": {
		Name:        "aggressive",
		Description: "Very direct and urgent. Emphasizes consequences and the need for immediate action.",
	},
}

// VoiceResolver maps a voice name to its description: catalog first, then the
// built-in table, then the default voice.
type VoiceResolver struct {
	voices repository.VoiceRepository
	logger *zap.Logger
}

func NewVoiceResolver(voices repository.VoiceRepository, logger *zap.Logger) *VoiceResolver {
	return &VoiceResolver{voices: voices, logger: logger}
}

func (r *VoiceResolver) Resolve(ctx context.Context, name string) ResolvedVoice {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = requestdomain.DefaultTone
	}

	if r.voices != nil {
		voice, err := r.voices.FindByName(ctx, name)
		if err != nil {
			r.logger.Warn("Voice lookup failed, using built-in table", zap.String("voice", name), zap.Error(err))
		} else if voice != nil && strings.TrimSpace(voice.Description) != "" {
			return ResolvedVoice{
				Name:         voice.Name,
				Description:  voice.Description,
				NoEscalation: voice.NoEscalation,
			}
		}
	}

	if v, ok := builtinVoices[name]; ok {
		return v
	}
	return builtinVoices[requestdomain.DefaultTone]
}

// Known reports whether name is in the catalog or the built-in table.
func (r *VoiceResolver) Known(ctx context.Context, name string) (bool, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if _, ok := builtinVoices[name]; ok {
		return true, nil
	}
	if r.voices == nil {
		return false, nil
	}
	voice, err := r.voices.FindByName(ctx, name)
	if err != nil {
		return false, err
	}
	return voice != nil, nil
}

// composeSubject threads a follow-up under the original subject.
func composeSubject(subject *string) string {
	s := strings.TrimSpace(derefString(subject))
	if s == "" {
		return defaultFollowupSubject
	}
	if strings.HasPrefix(s, "Re:") {
		return s
	}
	return "Re: " + s
}

func buildFollowupParams(req *requestdomain.Request, voice ResolvedVoice, number, daysSinceInitial int) requestdomain.FollowupParams {
	return requestdomain.FollowupParams{
		RecipientName:    derefString(req.RecipientName),
		Amount:           derefString(req.Amount),
		Context:          req.Context,
		OriginalSubject:  derefString(req.Subject),
		VoiceName:        voice.Name,
		VoiceDescription: voice.Description,
		NoEscalation:     voice.NoEscalation,
		FollowupNumber:   number,
		DaysSinceInitial: daysSinceInitial,
	}
}
