package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"atende-relay/internal/evolution"
	"atende-relay/internal/models"
	"atende-relay/internal/repositories"
)

// ErrTenantNotResolved means no active Evolution config matches the inbound
// instance and no fallback tenant is configured. The webhook must answer 500
// so the provider redelivers.
var ErrTenantNotResolved = errors.New("no tenant resolved for instance")

// Resolver idempotently maps a canonical inbound event to a contact and an
// open conversation, creating either when absent.
type Resolver struct {
	configs       *repositories.ConfigRepository
	contacts      *repositories.ContactRepository
	conversations *repositories.ConversationRepository

	defaultEmpresaID string
	singleOpen       bool
}

func NewResolver(
	configs *repositories.ConfigRepository,
	contacts *repositories.ContactRepository,
	conversations *repositories.ConversationRepository,
	defaultEmpresaID string,
	singleOpen bool,
) *Resolver {
	return &Resolver{
		configs:          configs,
		contacts:         contacts,
		conversations:    conversations,
		defaultEmpresaID: defaultEmpresaID,
		singleOpen:       singleOpen,
	}
}

// ResolveTenant maps the webhook instance to a tenant id.
func (r *Resolver) ResolveTenant(instance string) (string, error) {
	cfg, err := r.configs.ByInstanceName(instance)
	if err != nil {
		return "", err
	}
	if cfg != nil {
		return cfg.EmpresaID, nil
	}
	if r.defaultEmpresaID != "" {
		log.Warn().Str("instance", instance).Str("empresaId", r.defaultEmpresaID).
			Msg("No evolution config for instance, falling back to default tenant")
		return r.defaultEmpresaID, nil
	}
	return "", fmt.Errorf("%w: %s", ErrTenantNotResolved, instance)
}

// Resolve returns the contact and open conversation for the event, creating
// at most one of each. The boolean reports whether the conversation is new.
func (r *Resolver) Resolve(ev *evolution.InboundEvent) (*models.Contato, *models.Conversa, bool, error) {
	empresaID, err := r.ResolveTenant(ev.Instance)
	if err != nil {
		return nil, nil, false, err
	}

	contato, err := r.contacts.FindByTelefone(empresaID, ev.Telefone)
	if err != nil {
		return nil, nil, false, err
	}
	if contato == nil {
		contato, err = r.contacts.Create(empresaID, ev.NomeContato, ev.Telefone)
		if err != nil {
			return nil, nil, false, err
		}
		log.Info().Str("contatoId", contato.ID).Str("telefone", ev.Telefone).Msg("Created contact")
	}

	conversa, err := r.conversations.FindOpen(contato.ID, "whatsapp")
	if err != nil {
		return nil, nil, false, err
	}
	if conversa != nil {
		if r.singleOpen {
			// Strict mode: surface overlapping open conversations instead
			// of silently picking the most recent one.
			n, err := r.conversations.CountOpen(contato.ID, "whatsapp")
			if err != nil {
				return nil, nil, false, err
			}
			if n > 1 {
				log.Warn().Str("contatoId", contato.ID).Int("open", n).
					Msg("Multiple open conversations for contact in strict mode")
			}
		}
		if err := r.conversations.Touch(conversa.ID); err != nil {
			return nil, nil, false, err
		}
		return contato, conversa, false, nil
	}

	conversa, err = r.conversations.Create(empresaID, contato.ID, "whatsapp")
	if err != nil {
		return nil, nil, false, err
	}
	log.Info().Str("conversaId", conversa.ID).Str("contatoId", contato.ID).Msg("Created conversation")
	return contato, conversa, true, nil
}
