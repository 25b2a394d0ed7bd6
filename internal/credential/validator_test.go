package credential_test

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/LACC-DEVLINK/checkin-exercito-api/internal/credential"
)

func TestNewValidatorRequiresDependencies(t *testing.T) {
	_, err := credential.NewValidator(nil, newSigner(t))
	require.Error(t, err)

	_, err = credential.NewValidator(unavailableStore{}, nil)
	require.Error(t, err)
}

func TestValidateConsumesOnce(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "event-1")
	require.NoError(t, err)

	first, err := h.validator.Validate(ctx, cred.RenderedPayload)
	require.NoError(t, err)
	require.True(t, first.Valid)
	require.Equal(t, credential.ReasonValid, first.Reason)
	require.Equal(t, "subject-1", first.SubjectID)
	require.Equal(t, "event-1", first.EventID)
	require.NoError(t, first.Err())

	second, err := h.validator.Validate(ctx, cred.RenderedPayload)
	require.NoError(t, err)
	require.False(t, second.Valid)
	require.Equal(t, credential.ReasonNotFoundOrAlreadyUsed, second.Reason)
	require.Empty(t, second.SubjectID)
	require.ErrorIs(t, second.Err(), credential.ErrNotFoundOrAlreadyUsed)

	require.Equal(t, 0, h.store.ActiveCount("subject-1"))
}

func TestValidateConcurrentScansSucceedOnce(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)

	var (
		wg    sync.WaitGroup
		valid atomic.Int32
		used  atomic.Int32
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.validator.Validate(ctx, cred.RenderedPayload)
			require.NoError(t, err)
			if res.Valid {
				valid.Add(1)
			} else if res.Reason == credential.ReasonNotFoundOrAlreadyUsed {
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, valid.Load())
	require.EqualValues(t, 31, used.Load())
}

func TestValidateFlippedSignatureDoesNotConsume(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)

	payload, err := credential.ParsePayload(cred.RenderedPayload)
	require.NoError(t, err)
	payload.Signature = flipHexChar(payload.Signature, 10)
	tampered, err := payload.Encode()
	require.NoError(t, err)

	res, err := h.validator.Validate(ctx, tampered)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, credential.ReasonBadSignature, res.Reason)
	require.Equal(t, 1, h.store.ActiveCount("subject-1"))

	res, err = h.validator.Validate(ctx, cred.RenderedPayload)
	require.NoError(t, err)
	require.True(t, res.Valid)
}

func TestValidateUppercasedSignatureDoesNotConsume(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)

	idx := strings.IndexAny(cred.Signature, "abcdef")
	require.GreaterOrEqual(t, idx, 0)

	upper := upperHexChar(cred.Signature, idx)
	require.False(t, h.signer.Verify(credential.Fields{
		SubjectID:    cred.SubjectID,
		CredentialID: cred.CredentialID,
		IssuedAt:     cred.IssuedAt.UnixMilli(),
	}, upper))

	tampered := strings.Replace(cred.RenderedPayload, cred.Signature, upper, 1)
	require.NotEqual(t, cred.RenderedPayload, tampered)

	res, err := h.validator.Validate(ctx, tampered)
	require.NoError(t, err)
	require.False(t, res.Valid)
	require.Equal(t, credential.ReasonMalformedPayload, res.Reason, "signatures are lowercase hex only")
	require.Equal(t, 1, h.store.ActiveCount("subject-1"))

	res, err = h.validator.Validate(ctx, cred.RenderedPayload)
	require.NoError(t, err)
	require.True(t, res.Valid)
}

func TestValidateRejectsResignedFieldsForOtherEvent(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "event-1")
	require.NoError(t, err)

	payload, err := credential.ParsePayload(cred.RenderedPayload)
	require.NoError(t, err)
	other := "event-2"
	payload.EventID = &other
	payload.Signature = h.signer.Sign(payload.Fields())
	forged, err := payload.Encode()
	require.NoError(t, err)

	res, err := h.validator.Validate(ctx, forged)
	require.NoError(t, err)
	require.Equal(t, credential.ReasonBadSignature, res.Reason)
	require.Equal(t, 1, h.store.ActiveCount("subject-1"))
}

func TestValidateSupersededCredential(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()

	old, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)
	fresh, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)

	res, err := h.validator.Validate(ctx, old.RenderedPayload)
	require.NoError(t, err)
	require.Equal(t, credential.ReasonNotFoundOrAlreadyUsed, res.Reason)

	res, err = h.validator.Validate(ctx, fresh.RenderedPayload)
	require.NoError(t, err)
	require.True(t, res.Valid)
}

func TestValidateMalformedPayload(t *testing.T) {
	h := newHarness(t, nil, nil)

	for _, raw := range []string{"", "garbage", `{"subjectId":"s"}`} {
		res, err := h.validator.Validate(context.Background(), raw)
		require.NoError(t, err)
		require.Equal(t, credential.ReasonMalformedPayload, res.Reason)
		require.Equal(t, credential.ErrMalformedPayload.Message, res.Message)
	}
}

func TestValidateUnknownCredential(t *testing.T) {
	h := newHarness(t, nil, nil)
	signer := h.signer

	payload := credential.Payload{SubjectID: "ghost", CredentialID: "never-issued", IssuedAt: 1}
	payload.Signature = signer.Sign(payload.Fields())
	raw, err := payload.Encode()
	require.NoError(t, err)

	res, err := h.validator.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, credential.ReasonNotFoundOrAlreadyUsed, res.Reason)
}

func TestValidateExpiredCredential(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	scanAt := issuedAt.Add(time.Hour)

	h := newHarness(t,
		[]credential.IssuerOption{credential.WithIssuerClock(fixedClock(issuedAt)), credential.WithTTL(time.Hour)},
		[]credential.ValidatorOption{credential.WithValidatorClock(fixedClock(scanAt))},
	)
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)

	res, err := h.validator.Validate(ctx, cred.RenderedPayload)
	require.NoError(t, err)
	require.Equal(t, credential.ReasonExpired, res.Reason)
	require.ErrorIs(t, res.Err(), credential.ErrExpired)
	require.Equal(t, 1, h.store.ActiveCount("subject-1"))
}

func TestValidateStorageUnavailable(t *testing.T) {
	signer := newSigner(t)
	validator, err := credential.NewValidator(unavailableStore{}, signer)
	require.NoError(t, err)

	payload := credential.Payload{SubjectID: "s", CredentialID: "c", IssuedAt: 1}
	payload.Signature = signer.Sign(payload.Fields())
	raw, err := payload.Encode()
	require.NoError(t, err)

	res, err := validator.Validate(context.Background(), raw)
	require.ErrorIs(t, err, credential.ErrStorageUnavailable)
	require.ErrorIs(t, err, errUnavailable)
	require.False(t, res.Valid)
	require.Equal(t, credential.ReasonStorageUnavailable, res.Reason)
}

func TestValidateRecordsAudit(t *testing.T) {
	auditor := &recordingAuditor{}
	h := newHarness(t, nil, []credential.ValidatorOption{credential.WithValidatorAuditor(auditor)})
	ctx := context.Background()

	cred, err := h.issuer.Issue(ctx, "subject-1", "")
	require.NoError(t, err)
	_, _ = h.validator.Validate(ctx, cred.RenderedPayload)
	_, _ = h.validator.Validate(ctx, cred.RenderedPayload)

	events := auditor.Events()
	require.Len(t, events, 2)
	require.Equal(t, "success", events[0].Result)
	require.Equal(t, "failure", events[1].Result)
	require.Equal(t, string(credential.ReasonNotFoundOrAlreadyUsed), events[1].Metadata["reason"])
}
