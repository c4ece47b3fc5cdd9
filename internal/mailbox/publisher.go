package mailbox

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

// Publisher delivers an envelope to the external agent.
type Publisher interface {
	// Publish fails with cerr.AlreadyExists when the envelope id was
	// already delivered.
	Publish(ctx context.Context, env *Envelope) error
}

// StoragePublisher drops envelopes as files into a mailbox directory.
type StoragePublisher struct {
	storage storage.Storage
	dir     string
}

var _ Publisher = (*StoragePublisher)(nil)

func NewStoragePublisher(s storage.Storage, dir string) *StoragePublisher {
	return &StoragePublisher{storage: s, dir: dir}
}

func (p *StoragePublisher) path(id string) string {
	return path.Join(p.dir, FileName(id))
}

func (p *StoragePublisher) Publish(ctx context.Context, env *Envelope) error {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal envelope %s: %w", env.ID, err))
	}
	if err := p.storage.Create(ctx, p.path(env.ID), data); err != nil {
		return cerr.WrapStorageWriteError("message "+env.ID, err)
	}
	return nil
}

// Read loads a previously published envelope.
func (p *StoragePublisher) Read(ctx context.Context, id string) (*Envelope, error) {
	data, err := p.storage.Read(ctx, p.path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError("message "+id, err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, cerr.WrapDecodeError("message "+id, err)
	}
	return &env, nil
}
