package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchkit/campaign-indexer/internal/domain/model"
)

const testFactory = "0x00000000000000000000000000000000000000f1"

func encWord(v uint64) string {
	return fmt.Sprintf("%064x", v)
}

func encAddrWord(addr string) string {
	return fmt.Sprintf("%064s", addr[2:])
}

// fakeCaller serves eth_call responses keyed by exact call data.
type fakeCaller struct {
	responses map[string]string
	errOn     string
}

func (c *fakeCaller) Call(_ context.Context, to, data string) (string, error) {
	if to != testFactory {
		return "", fmt.Errorf("unexpected call target %s", to)
	}
	if c.errOn != "" && data == c.errOn {
		return "", errors.New("execution reverted")
	}
	out, ok := c.responses[data]
	if !ok {
		return "", fmt.Errorf("no response for call data %s", data)
	}
	return out, nil
}

type fakeCampaignStore struct {
	addresses []string
	upserts   []*model.Campaign
	listErr   error
}

func (s *fakeCampaignStore) Upsert(_ context.Context, c *model.Campaign) error {
	s.upserts = append(s.upserts, c)
	return nil
}

func (s *fakeCampaignStore) Get(context.Context, int64, string) (*model.Campaign, error) {
	return nil, nil
}

func (s *fakeCampaignStore) ListActive(context.Context, int64) ([]*model.Campaign, error) {
	return nil, nil
}

func (s *fakeCampaignStore) ListAddresses(context.Context, int64) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.addresses, nil
}

func (s *fakeCampaignStore) SetGraduated(context.Context, int64, string, int64, time.Time) error {
	return nil
}

func (s *fakeCampaignStore) SetFeeRecipient(context.Context, int64, string, string) error {
	return nil
}

func registryOf(addrs ...string) map[string]string {
	responses := map[string]string{
		selectorCampaignCount: "0x" + encWord(uint64(len(addrs))),
	}
	for i, addr := range addrs {
		responses[selectorCampaignAt+encWord(uint64(i))] = "0x" + encAddrWord(addr)
	}
	return responses
}

func TestReconciler_HealsMissingCampaigns(t *testing.T) {
	known := "0x00000000000000000000000000000000000000aa"
	missing := "0x00000000000000000000000000000000000000bb"

	caller := &fakeCaller{responses: registryOf(known, missing)}
	campaigns := &fakeCampaignStore{addresses: []string{known}}
	r := NewReconciler(97, testFactory, caller, campaigns, slog.Default())

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, campaigns.upserts, 1)
	healed := campaigns.upserts[0]
	assert.Equal(t, missing, healed.Address)
	assert.Equal(t, int64(97), healed.ChainID)
	assert.True(t, healed.IsActive)
	assert.Empty(t, healed.Name, "healed rows carry no metadata yet")
}

func TestReconciler_AllKnownIsNoOp(t *testing.T) {
	addr := "0x00000000000000000000000000000000000000aa"

	caller := &fakeCaller{responses: registryOf(addr)}
	campaigns := &fakeCampaignStore{addresses: []string{addr}}
	r := NewReconciler(97, testFactory, caller, campaigns, slog.Default())

	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, campaigns.upserts)
}

func TestReconciler_EmptyRegistry(t *testing.T) {
	caller := &fakeCaller{responses: registryOf()}
	campaigns := &fakeCampaignStore{}
	r := NewReconciler(97, testFactory, caller, campaigns, slog.Default())

	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, campaigns.upserts)
}

func TestReconciler_CountCallFailure(t *testing.T) {
	caller := &fakeCaller{responses: map[string]string{}, errOn: selectorCampaignCount}
	r := NewReconciler(97, testFactory, caller, &fakeCampaignStore{}, slog.Default())

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry count")
}

func TestReconciler_EntryCallFailure(t *testing.T) {
	responses := registryOf("0x00000000000000000000000000000000000000aa")
	caller := &fakeCaller{responses: responses, errOn: selectorCampaignAt + encWord(0)}
	r := NewReconciler(97, testFactory, caller, &fakeCampaignStore{}, slog.Default())

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry entry 0")
}

func TestReconciler_FeeRecipient(t *testing.T) {
	recipient := "0x00000000000000000000000000000000000000fe"
	caller := &fakeCaller{responses: map[string]string{
		selectorFeeRecipient: "0x" + encAddrWord(recipient),
	}}
	r := NewReconciler(97, testFactory, caller, &fakeCampaignStore{}, slog.Default())

	got, err := r.FeeRecipient(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recipient, got)
}
