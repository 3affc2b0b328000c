package reconcile

import (
	"context"
	"errors"

	"github.com/sacrosaunt/churnchurnchurn/internal/backend"
	"github.com/sacrosaunt/churnchurnchurn/internal/events"
	"github.com/sacrosaunt/churnchurnchurn/internal/metrics"
	"github.com/sacrosaunt/churnchurnchurn/internal/models"
	"github.com/sacrosaunt/churnchurnchurn/internal/offerstate"
	"github.com/sacrosaunt/churnchurnchurn/internal/refresh"
	"github.com/sacrosaunt/churnchurnchurn/internal/validation"
)

// Submit adds an offer from a URL or pasted content. A conflict with a
// tracked offer returns *backend.DuplicateOfferError.
func (e *Engine) Submit(ctx context.Context, req models.CreateOfferRequest) (models.Offer, error) {
	r, err := e.call(ctx, func(reply chan result) Message { return submitMsg{req: req, reply: reply} })
	return r.offer, err
}

// Reprocess runs the whole backend pipeline again for an offer.
func (e *Engine) Reprocess(ctx context.Context, id int) (models.Offer, error) {
	r, err := e.call(ctx, func(reply chan result) Message { return reprocessMsg{id: id, reply: reply} })
	return r.offer, err
}

// RefreshField re-extracts a single field. It returns once the backend has
// accepted the request; progress arrives as refresh.progress events.
func (e *Engine) RefreshField(ctx context.Context, id int, field string) error {
	_, err := e.call(ctx, func(reply chan result) Message { return refreshFieldMsg{id: id, field: field, reply: reply} })
	return err
}

// UpdateStatus moves the offer to key, setting every earlier progress flag
// and clearing every later one.
func (e *Engine) UpdateStatus(ctx context.Context, id int, key offerstate.StatusKey) (models.Offer, error) {
	r, err := e.call(ctx, func(reply chan result) Message { return updateStatusMsg{id: id, key: key, reply: reply} })
	return r.offer, err
}

// SetURL changes an offer's source URL.
func (e *Engine) SetURL(ctx context.Context, id int, rawURL string) (models.Offer, error) {
	r, err := e.call(ctx, func(reply chan result) Message { return setURLMsg{id: id, url: rawURL, reply: reply} })
	return r.offer, err
}

func (e *Engine) Delete(ctx context.Context, id int) error {
	_, err := e.call(ctx, func(reply chan result) Message { return deleteMsg{id: id, reply: reply} })
	return err
}

// Focus opens the detail view for an offer. An unknown offer publishes a
// notice and returns backend.ErrNotFound.
func (e *Engine) Focus(ctx context.Context, id int) (models.Offer, error) {
	r, err := e.call(ctx, func(reply chan result) Message { return focusMsg{id: id, reply: reply} })
	return r.offer, err
}

// Blur closes the detail view.
func (e *Engine) Blur(ctx context.Context) error {
	_, err := e.call(ctx, func(reply chan result) Message { return blurMsg{reply: reply} })
	return err
}

// Kick polls immediately, restarting adaptive polling.
func (e *Engine) Kick(ctx context.Context) error {
	_, err := e.call(ctx, func(reply chan result) Message { return kickMsg{reply: reply} })
	return err
}

// Snapshot returns a consistent copy of the engine state.
func (e *Engine) Snapshot(ctx context.Context) (Snapshot, error) {
	r, err := e.call(ctx, func(reply chan result) Message { return snapshotMsg{reply: reply} })
	return r.snapshot, err
}

var errStopped = errors.New("reconciliation loop is not running")

func (e *Engine) call(ctx context.Context, build func(chan result) Message) (result, error) {
	reply := make(chan result, 1)
	msg := build(reply)

	select {
	case e.inbox <- msg:
	case <-e.done:
		return result{}, errStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-reply:
		return r, r.err
	case <-e.done:
		return result{}, errStopped
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (e *Engine) submit(ctx context.Context, req models.CreateOfferRequest) (models.Offer, error) {
	req.URL = validation.SanitizeString(req.URL)
	req.Content = validation.SanitizeString(req.Content)
	req.OriginalURL = validation.SanitizeString(req.OriginalURL)
	if err := validation.ValidateCreateRequest(req); err != nil {
		return models.Offer{}, err
	}

	offer, err := e.backend.CreateOffer(ctx, req)
	if err != nil {
		var dup *backend.DuplicateOfferError
		if errors.As(err, &dup) {
			e.events.PublishNotice(ctx, events.NoticeInfo, dup.Error())
			return models.Offer{}, err
		}
		e.notifyError(ctx, "Failed to add offer", err)
		return models.Offer{}, err
	}

	e.store.Put(offer)
	e.events.PublishRouteRender(ctx, "offer added")
	e.schedulePoll(e.cfg.PollInterval)
	return offer, nil
}

func (e *Engine) reprocess(ctx context.Context, id int) (models.Offer, error) {
	offer, err := e.cached(ctx, id)
	if err != nil {
		return models.Offer{}, err
	}
	if offer.IsProcessing() {
		return models.Offer{}, ErrOfferProcessing
	}

	updated, err := e.backend.Reprocess(ctx, offer)
	if err != nil {
		e.notifyError(ctx, "Failed to refresh the offer", err)
		return models.Offer{}, err
	}

	e.tracker.Forget(id)
	e.store.Put(updated)
	e.events.PublishRouteRender(ctx, "offer reprocessing")
	e.schedulePoll(e.cfg.PollInterval)
	return updated, nil
}

func (e *Engine) refreshField(ctx context.Context, id int, field string) error {
	if err := validation.ValidateField(field); err != nil {
		return err
	}
	offer, err := e.cached(ctx, id)
	if err != nil {
		return err
	}
	if offer.IsProcessing() {
		return ErrOfferProcessing
	}

	key := refresh.Key{OfferID: id, Field: field}
	started, err := e.tracker.Start(key, e.now())
	if err != nil {
		return err
	}
	e.publishRefresh(ctx, started)

	if err := e.backend.RefreshField(ctx, id, field); err != nil {
		if tr, ok := e.tracker.Fail(key); ok {
			e.publishRefresh(ctx, tr)
		}
		metrics.ObserveRefresh(string(refresh.Error))
		e.sched.After(e.cfg.Refresh.ErrorDisplay, settleMsg{key: key})
		e.notifyError(ctx, "Failed to refresh field", err)
		return err
	}

	e.schedulePoll(e.tracker.PollInterval(e.now()))
	return nil
}

var statusFields = []string{"opened", "deposited", "received"}

func (e *Engine) updateStatus(ctx context.Context, id int, key offerstate.StatusKey) (models.Offer, error) {
	offer, err := e.cached(ctx, id)
	if err != nil {
		return models.Offer{}, err
	}

	flags := offerstate.FlagsFor(key)
	values := map[string]bool{
		"opened":    flags.Opened,
		"deposited": flags.Deposited,
		"received":  flags.Received,
	}

	// Raise flags front to back and clear them back to front so every
	// intermediate state is itself a valid prefix.
	order := append([]string(nil), statusFields...)
	if rank(key) < rank(offerstate.CurrentStatusKey(offer)) {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	var putErr error
	for _, field := range order {
		if _, err := e.backend.UpdateField(ctx, id, field, values[field]); err != nil {
			putErr = err
			break
		}
	}

	updated, err := e.backend.GetOffer(ctx, id)
	if err == nil {
		e.store.Put(updated)
	}

	if putErr != nil {
		e.notifyError(ctx, "Failed to update status", putErr)
		e.events.PublishRouteRender(ctx, "status update failed")
		return models.Offer{}, putErr
	}
	if err != nil {
		e.notifyError(ctx, "Failed to reload offer", err)
		return models.Offer{}, err
	}

	e.events.PublishRouteRender(ctx, "status updated")
	e.schedulePoll(e.cfg.PollInterval)
	return updated, nil
}

func rank(key offerstate.StatusKey) int {
	for i, k := range offerstate.StatusKeys {
		if k == key {
			return i
		}
	}
	return 0
}

func (e *Engine) setURL(ctx context.Context, id int, rawURL string) (models.Offer, error) {
	rawURL = validation.SanitizeString(rawURL)
	if err := validation.ValidateURL(rawURL, "url"); err != nil {
		return models.Offer{}, err
	}
	if _, err := e.cached(ctx, id); err != nil {
		return models.Offer{}, err
	}

	updated, err := e.backend.UpdateField(ctx, id, "url", rawURL)
	if err != nil {
		e.notifyError(ctx, "Failed to update URL", err)
		return models.Offer{}, err
	}

	e.store.Put(updated)
	e.events.PublishRouteRender(ctx, "url updated")
	return updated, nil
}

func (e *Engine) delete(ctx context.Context, id int) error {
	err := e.backend.DeleteOffer(ctx, id)
	if err != nil && !errors.Is(err, backend.ErrNotFound) {
		e.notifyError(ctx, "Failed to delete offer", err)
		return err
	}

	e.store.RemoveByID(id)
	e.tracker.Forget(id)
	if e.focused == id {
		e.focused = 0
	}
	e.events.PublishRouteRender(ctx, "offer deleted")
	return nil
}

func (e *Engine) focus(ctx context.Context, id int) (models.Offer, error) {
	offer, ok := e.store.Get(id)
	if !ok {
		fetched, err := e.backend.GetOffer(ctx, id)
		if err != nil {
			e.focused = 0
			if errors.Is(err, backend.ErrNotFound) {
				e.events.PublishNotice(ctx, events.NoticeError, "Offer not found")
				return models.Offer{}, backend.ErrNotFound
			}
			e.notifyError(ctx, "Failed to load offer", err)
			return models.Offer{}, err
		}
		e.store.Put(fetched)
		offer = fetched
	}

	e.focused = id
	e.events.PublishDetailRender(ctx, id)
	if offer.IsProcessing() || offer.IsRefreshing() {
		e.schedulePoll(e.cfg.PollInterval)
	}
	return offer, nil
}

func (e *Engine) blur(ctx context.Context) {
	if e.focused == 0 {
		return
	}
	e.focused = 0
	e.events.PublishRouteRender(ctx, "detail closed")
}

// cached returns the cached offer or publishes a not-found notice.
func (e *Engine) cached(ctx context.Context, id int) (models.Offer, error) {
	offer, ok := e.store.Get(id)
	if !ok {
		e.events.PublishNotice(ctx, events.NoticeError, "Offer not found")
		return models.Offer{}, backend.ErrNotFound
	}
	return offer, nil
}
