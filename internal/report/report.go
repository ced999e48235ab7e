// Package report implements the Report Processor (C9): it orchestrates
// validation, the report state machine, chain-link detection, fan-out
// through the Chain Propagator (C8) and batchers (C7), and the
// positive/negative/retraction processing paths described in
// spec.md §4.9.
package report

import (
	"context"
	"encoding/json"
	"log"
	"regexp"

	"github.com/google/uuid"

	"github.com/lighthouse-health/exposure-relay/internal/batch"
	"github.com/lighthouse-health/exposure-relay/internal/cache"
	"github.com/lighthouse-health/exposure-relay/internal/hashing"
	"github.com/lighthouse-health/exposure-relay/internal/push"
	"github.com/lighthouse-health/exposure-relay/internal/propagation"
	"github.com/lighthouse-health/exposure-relay/internal/store"
	"github.com/lighthouse-health/exposure-relay/pkg/models"
)

// RetentionHorizonDays bounds how far in the past a valid testDate may
// fall, per spec.md §3/§4.6.
const RetentionHorizonDays = 180
const day = 24 * 60 * 60 * 1000

// Processor wires the store, push dispatcher, and chain propagator
// together to run one report end to end.
type Processor struct {
	store      store.Store
	dispatcher *push.Dispatcher
}

func New(s store.Store, dispatcher *push.Dispatcher) *Processor {
	return &Processor{store: s, dispatcher: dispatcher}
}

// ValidatePositive checks the fields of a reportPositiveTest request,
// per spec.md §4.9 step 1.
func ValidatePositive(stiTypes []string, testDate int64, privacyLevel models.PrivacyLevel, now int64) error {
	if len(stiTypes) == 0 {
		return store.NewInvalidArgument("stiTypes must be non-empty")
	}
	encoded, err := json.Marshal(stiTypes)
	if err != nil || len(encoded) > models.MaxSTITypesBytes {
		return store.NewInvalidArgument("stiTypes exceeds the maximum encoded size")
	}
	if testDate > now {
		return store.NewInvalidArgument("testDate cannot be in the future")
	}
	if testDate < now-RetentionHorizonDays*day {
		return store.NewInvalidArgument("testDate is outside the retention horizon")
	}
	if !privacyLevel.Valid() {
		return store.NewInvalidArgument("privacyLevel is not recognized")
	}
	return nil
}

// CreatePositiveReport validates, detects chain-link to a prior
// notification, and writes the pending report document. The trigger
// adapter (C12) is responsible for calling ProcessPositive afterward.
func (p *Processor) CreatePositiveReport(ctx context.Context, reporterUID string, stiTypes []string, testDate int64, privacyLevel models.PrivacyLevel, now int64) (models.Report, error) {
	if err := ValidatePositive(stiTypes, testDate, privacyLevel, now); err != nil {
		return models.Report{}, err
	}

	var reporter models.User
	if err := p.store.Get(ctx, store.Users, reporterUID, &reporter); err != nil {
		return models.Report{}, err
	}

	linkedReportID, err := p.detectChainLink(ctx, reporter.HashedNotificationID, stiTypes)
	if err != nil {
		return models.Report{}, err
	}

	rep := models.Report{
		ID:                           uuid.NewString(),
		ReporterID:                   hashing.Report(reporterUID),
		ReporterInteractionHashedID:  reporter.HashedInteractionID,
		ReporterNotificationHashedID: reporter.HashedNotificationID,
		STITypes:                     stiTypes,
		TestDate:                     testDate,
		PrivacyLevel:                 privacyLevel,
		TestResult:                   models.TestPositive,
		ReportedAt:                   now,
		Status:                       models.StatusPending,
		LinkedReportID:               linkedReportID,
	}
	if err := p.store.Set(ctx, store.Reports, rep.ID, rep, false); err != nil {
		return models.Report{}, err
	}
	return rep, nil
}

// detectChainLink implements spec.md §4.9 step 3a: among the
// reporter's own EXPOSURE notifications whose stiType intersects the
// reported set, the most recent one's reportId becomes linkedReportId.
func (p *Processor) detectChainLink(ctx context.Context, reporterNotificationHashedID string, stiTypes []string) (string, error) {
	notifs, err := p.ownNotifications(ctx, reporterNotificationHashedID)
	if err != nil {
		return "", err
	}
	var best *models.Notification
	for i := range notifs {
		n := &notifs[i]
		if n.Type != models.TypeExposure || n.DeletedAt != 0 {
			continue
		}
		if !intersects(n.STIType, stiTypes) {
			continue
		}
		if best == nil || n.ReceivedAt > best.ReceivedAt {
			best = n
		}
	}
	if best == nil {
		return "", nil
	}
	return best.ReportID, nil
}

func (p *Processor) ownNotifications(ctx context.Context, recipientID string) ([]models.Notification, error) {
	snaps, err := p.store.Query(ctx, store.Notifications, "recipientId", recipientID, store.QueryOptions{})
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(snaps))
	for _, snap := range snaps {
		var n models.Notification
		if err := snap.Unmarshal(&n); err != nil {
			log.Printf("report: skipping malformed notification %s: %v", snap.ID, err)
			continue
		}
		n.ID = snap.ID
		out = append(out, n)
	}
	return out, nil
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	for _, x := range b {
		if set[x] {
			return true
		}
	}
	return false
}

// ProcessPositive is the trigger-invoked body of spec.md §4.9's
// positive path: CAS the report to processing, run the chain
// propagator, commit notifications and pushes, update the reporter's
// own prior notifications, propagate the positive update downstream,
// and mark the report completed. It is safe to re-run: a report
// already completed returns immediately.
func (p *Processor) ProcessPositive(ctx context.Context, reportID string, now int64) error {
	rep, proceed, err := p.casToProcessing(ctx, reportID)
	if err != nil || !proceed {
		return err
	}

	iqCache := cache.NewInteractionQueryCache()
	ulCache := cache.NewUserLookupCache()
	prop := propagation.New(p.store, iqCache, ulCache)

	var reporterUID string
	if err := p.resolveUID(ctx, rep.ReporterInteractionHashedID, &reporterUID); err != nil {
		return p.fail(ctx, rep.ID, err)
	}

	notifies, err := prop.Run(ctx, propagation.Input{
		ReporterUID:  reporterUID,
		STITypes:     rep.STITypes,
		TestDate:     rep.TestDate,
		PrivacyLevel: rep.PrivacyLevel,
		Now:          now,
	})
	if err != nil {
		return p.fail(ctx, rep.ID, err)
	}

	if err := p.commitNotifications(ctx, rep, notifies, now); err != nil {
		return p.fail(ctx, rep.ID, err)
	}

	if err := p.updateOwnNotifications(ctx, rep, now); err != nil {
		return p.fail(ctx, rep.ID, err)
	}

	if err := p.propagatePositiveUpdate(ctx, rep.ReporterInteractionHashedID, rep.STITypes, now); err != nil {
		return p.fail(ctx, rep.ID, err)
	}

	return p.store.Update(ctx, store.Reports, rep.ID, map[string]any{
		"status":      models.StatusCompleted,
		"processedAt": now,
	})
}

// casToProcessing re-reads the report and compare-and-swaps pending to
// processing. Returns proceed=false if the report is already past
// pending — the idempotent-retry short-circuit from spec.md §4.8.
func (p *Processor) casToProcessing(ctx context.Context, reportID string) (models.Report, bool, error) {
	var rep models.Report
	if err := p.store.Get(ctx, store.Reports, reportID, &rep); err != nil {
		return models.Report{}, false, err
	}
	if rep.Status != models.StatusPending {
		return rep, false, nil
	}
	if err := p.store.Update(ctx, store.Reports, reportID, map[string]any{"status": models.StatusProcessing}); err != nil {
		return models.Report{}, false, err
	}
	rep.Status = models.StatusProcessing
	return rep, true, nil
}

func (p *Processor) fail(ctx context.Context, reportID string, cause error) error {
	log.Printf("report: processing %s failed: %v", reportID, cause)
	if err := p.store.Update(ctx, store.Reports, reportID, map[string]any{
		"status": models.StatusFailed,
		"error":  cause.Error(),
	}); err != nil {
		log.Printf("report: failed to record failure status for %s: %v", reportID, err)
	}
	return store.NewInternal("report processing failed", cause)
}

// resolveUID looks up the owning uid from a hashedInteractionId — the
// Report document only stores hashes, never the raw uid, so the
// propagator (which needs the uid to re-derive H_I internally) must
// recover it via a user-collection query.
func (p *Processor) resolveUID(ctx context.Context, hashedInteractionID string, out *string) error {
	snaps, err := p.store.Query(ctx, store.Users, "hashedInteractionId", hashedInteractionID, store.QueryOptions{})
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return store.NewNotFound("reporter user document not found")
	}
	var u models.User
	if err := snaps[0].Unmarshal(&u); err != nil {
		return err
	}
	*out = u.UID
	return nil
}

// pendingPush is one recipient whose notification has been committed
// and is now a candidate for an FCM push.
type pendingPush struct {
	notifyID string
	uid      string
}

// commitNotifications turns every propagation.Notify into an upsert
// keyed by (recipientId, reportId), batches the writes via C7, and
// fans out EXPOSURE pushes. Notification writes are committed before
// any push is sent, per the ordering guarantee in spec.md §5.
func (p *Processor) commitNotifications(ctx context.Context, rep models.Report, notifies []propagation.Notify, now int64) error {
	nb := batch.NewNotificationBatcher(p.store)
	fb := batch.NewFCMBatcher(p.dispatcher)

	var recipients []pendingPush

	for _, n := range notifies {
		existing, existingID, err := p.findExistingNotification(ctx, n.RecipientNotificationHashedID, rep.ID)
		if err != nil {
			log.Printf("report: lookup failed for recipient, skipping: %v", err)
			continue
		}

		var doc models.Notification
		var id string
		if existing != nil {
			doc = mergeNotification(*existing, n, now)
			id = existingID
		} else {
			id = uuid.NewString()
			doc = newNotification(id, rep, n, now)
		}

		if err := nb.Add(batch.NotificationEntry{ID: id, Data: doc}); err != nil {
			return err
		}
		recipients = append(recipients, pendingPush{notifyID: id, uid: n.RecipientUID})
	}

	if _, err := nb.Commit(ctx); err != nil {
		return err
	}

	// pending mirrors exactly what fb.Add accepts — FCMBatcher.Add
	// silently drops empty-token records, so a recipient with no
	// FCMToken must never occupy a slot here, or
	// result.InvalidTokenIndices (expressed against the batcher's
	// accepted order) would land on the wrong recipient.
	var pending []pendingPush
	for _, r := range recipients {
		var u models.User
		if err := p.store.Get(ctx, store.Users, r.uid, &u); err != nil {
			continue
		}
		if u.FCMToken == "" {
			continue
		}
		fb.Add(push.Record{
			Token:          u.FCMToken,
			NotificationID: r.notifyID,
			Type:           string(models.TypeExposure),
			TitleLocKey:    push.TitleExposure,
			BodyLocKey:     push.BodyExposure,
		})
		pending = append(pending, r)
	}
	result := fb.Send(ctx)
	p.clearInvalidTokens(ctx, pending, result.InvalidTokenIndices)
	return nil
}

func (p *Processor) clearInvalidTokens(ctx context.Context, pending []pendingPush, invalidIndices []int) {
	for _, idx := range invalidIndices {
		if idx < 0 || idx >= len(pending) {
			continue
		}
		if err := p.store.Update(ctx, store.Users, pending[idx].uid, map[string]any{"fcmToken": ""}); err != nil {
			log.Printf("report: failed clearing invalid token for %s: %v", pending[idx].uid, err)
		}
	}
}

func newNotification(id string, rep models.Report, n propagation.Notify, now int64) models.Notification {
	return models.Notification{
		ID:           id,
		RecipientID:  n.RecipientNotificationHashedID,
		Type:         models.TypeExposure,
		STIType:      n.STIType,
		ExposureDate: n.ExposureDate,
		ChainData:    n.ChainData,
		ChainPath:    n.ChainPath,
		ChainPaths:   n.ChainPaths,
		HopDepth:     n.HopDepth,
		ReceivedAt:   now,
		UpdatedAt:    now,
		ReportID:     rep.ID,
	}
}

// mergeNotification implements the upsert rule in spec.md §4.8:
// extend chainPaths, recompute hopDepth as the min, never downgrade.
func mergeNotification(existing models.Notification, n propagation.Notify, now int64) models.Notification {
	merged := existing
	merged.UpdatedAt = now
	if n.HopDepth < merged.HopDepth {
		merged.HopDepth = n.HopDepth
	}

	paths := merged.ChainPaths
	if paths == nil {
		paths = [][]string{merged.ChainPath}
	}
	seen := map[string]bool{}
	for _, p := range paths {
		seen[pathKey(p)] = true
	}
	if !seen[pathKey(n.ChainPath)] {
		paths = append(paths, n.ChainPath)
	}
	for _, p := range n.ChainPaths {
		if !seen[pathKey(p)] {
			paths = append(paths, p)
			seen[pathKey(p)] = true
		}
	}
	if len(paths) > 1 {
		merged.ChainPaths = paths
	}
	return merged
}

func pathKey(path []string) string {
	b, _ := json.Marshal(path)
	return string(b)
}

func (p *Processor) findExistingNotification(ctx context.Context, recipientID, reportID string) (*models.Notification, string, error) {
	snaps, err := p.store.Query(ctx, store.Notifications, "recipientId", recipientID, store.QueryOptions{})
	if err != nil {
		return nil, "", err
	}
	for _, snap := range snaps {
		var n models.Notification
		if err := snap.Unmarshal(&n); err != nil {
			continue
		}
		if n.ReportID == reportID {
			return &n, snap.ID, nil
		}
	}
	return nil, "", nil
}

// updateOwnNotifications implements spec.md §4.9 step 3b: for every
// one of the reporter's own prior notifications whose STI set
// intersects the newly reported set, mutate the isCurrentUser node to
// POSITIVE with the intersection recorded.
func (p *Processor) updateOwnNotifications(ctx context.Context, rep models.Report, now int64) error {
	notifs, err := p.ownNotifications(ctx, rep.ReporterNotificationHashedID)
	if err != nil {
		return err
	}
	for _, n := range notifs {
		common := intersection(n.STIType, rep.STITypes)
		if len(common) == 0 {
			continue
		}
		idx := n.CurrentUserNodeIndex()
		if idx < 0 {
			continue
		}
		n.ChainData.Nodes[idx].TestStatus = models.NodePositive
		n.ChainData.Nodes[idx].TestedPositiveFor = common
		for pi := range n.ChainData.Paths {
			if idx < len(n.ChainData.Paths[pi]) {
				n.ChainData.Paths[pi][idx].TestStatus = models.NodePositive
				n.ChainData.Paths[pi][idx].TestedPositiveFor = common
			}
		}
		n.UpdatedAt = now
		if err := p.store.Set(ctx, store.Notifications, n.ID, n, false); err != nil {
			log.Printf("report: failed updating own notification %s: %v", n.ID, err)
		}
	}
	return nil
}

func intersection(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, x := range a {
		set[x] = true
	}
	var out []string
	for _, x := range b {
		if set[x] {
			out = append(out, x)
		}
	}
	return out
}

// propagatePositiveUpdate implements spec.md §4.9 step 6: scan
// notifications whose chainPath contains the reporter's chain-link
// hash, update the matching intermediary node to POSITIVE, and push
// an UPDATE to every downstream intermediary recipient.
func (p *Processor) propagatePositiveUpdate(ctx context.Context, reporterInteractionHashedID string, stiTypes []string, now int64) error {
	return p.propagateStatusUpdate(ctx, reporterInteractionHashedID, stiTypes, models.NodePositive, now)
}

// propagateNegativeUpdate implements spec.md §4.9's negative path
// step 2.
func (p *Processor) propagateNegativeUpdate(ctx context.Context, interactionHashedID string, stiTypes []string, now int64) error {
	return p.propagateStatusUpdate(ctx, interactionHashedID, stiTypes, models.NodeNegative, now)
}

func (p *Processor) propagateStatusUpdate(ctx context.Context, interactionHashedID string, stiTypes []string, status models.TestStatus, now int64) error {
	linkHash := hashing.ChainLink(interactionHashedID)
	candidates, err := p.notificationsContainingLink(ctx, linkHash)
	if err != nil {
		return err
	}

	fb := batch.NewFCMBatcher(p.dispatcher)
	type pushTarget struct {
		recipientID string
	}
	var targets []pushTarget

	for _, n := range candidates {
		if !intersects(n.STIType, stiTypes) {
			continue
		}
		idx := indexOf(n.ChainPath, linkHash)
		if idx < 0 || idx >= len(n.ChainData.Nodes) {
			continue
		}
		n.ChainData.Nodes[idx].TestStatus = status
		if status == models.NodePositive {
			n.ChainData.Nodes[idx].TestedPositiveFor = intersection(n.STIType, stiTypes)
		}
		n.UpdatedAt = now
		if err := p.store.Set(ctx, store.Notifications, n.ID, n, false); err != nil {
			log.Printf("report: failed updating downstream notification %s: %v", n.ID, err)
			continue
		}

		isIntermediary := idx > 0 && idx < len(n.ChainData.Nodes)-1
		if isIntermediary {
			targets = append(targets, pushTarget{recipientID: n.RecipientID})
		}
	}

	for _, target := range targets {
		var u models.User
		snaps, err := p.store.Query(ctx, store.Users, "hashedNotificationId", target.recipientID, store.QueryOptions{})
		if err != nil || len(snaps) == 0 {
			continue
		}
		if err := snaps[0].Unmarshal(&u); err != nil {
			continue
		}
		fb.Add(push.Record{
			Token:       u.FCMToken,
			Type:        string(models.TypeUpdate),
			TitleLocKey: push.TitleUpdate,
			BodyLocKey:  push.BodyUpdate,
		})
	}
	fb.Send(ctx)
	return nil
}

func indexOf(haystack []string, needle string) int {
	for i, h := range haystack {
		if h == needle {
			return i
		}
	}
	return -1
}

// notificationsContainingLink scans the notifications collection for
// documents whose chainPath contains linkHash, per the array-contains
// query in spec.md §4.9. Postgres backs this with a GIN index over
// chainPath (see internal/store/postgres.go's InitSchema).
func (p *Processor) notificationsContainingLink(ctx context.Context, linkHash string) ([]models.Notification, error) {
	snaps, err := p.store.QueryArrayContains(ctx, store.Notifications, "chainPath", linkHash)
	if err != nil {
		return nil, err
	}
	out := make([]models.Notification, 0, len(snaps))
	for _, snap := range snaps {
		var n models.Notification
		if err := snap.Unmarshal(&n); err != nil {
			continue
		}
		n.ID = snap.ID
		out = append(out, n)
	}
	return out, nil
}

// CreateNegativeReport writes a NEGATIVE report, per spec.md §4.9.
func (p *Processor) CreateNegativeReport(ctx context.Context, reporterUID string, stiType string, notificationID string, now int64) (models.Report, error) {
	var reporter models.User
	if err := p.store.Get(ctx, store.Users, reporterUID, &reporter); err != nil {
		return models.Report{}, err
	}
	rep := models.Report{
		ID:                           uuid.NewString(),
		ReporterID:                   hashing.Report(reporterUID),
		ReporterInteractionHashedID:  reporter.HashedInteractionID,
		ReporterNotificationHashedID: reporter.HashedNotificationID,
		STITypes:                     []string{stiType},
		TestDate:                     now,
		PrivacyLevel:                 models.PrivacyAnonymous,
		TestResult:                   models.TestNegative,
		ReportedAt:                   now,
		Status:                       models.StatusPending,
		NotificationID:               notificationID,
	}
	if err := p.store.Set(ctx, store.Reports, rep.ID, rep, false); err != nil {
		return models.Report{}, err
	}
	return rep, nil
}

// ProcessNegative is the trigger-invoked body of the negative path.
func (p *Processor) ProcessNegative(ctx context.Context, reportID string, now int64) error {
	rep, proceed, err := p.casToProcessing(ctx, reportID)
	if err != nil || !proceed {
		return err
	}

	if rep.NotificationID != "" {
		var n models.Notification
		if err := p.store.Get(ctx, store.Notifications, rep.NotificationID, &n); err == nil {
			idx := n.CurrentUserNodeIndex()
			if idx >= 0 {
				n.ChainData.Nodes[idx].TestStatus = models.NodeNegative
			}
			n.Type = models.TypeUpdate
			n.UpdatedAt = now
			if err := p.store.Set(ctx, store.Notifications, n.ID, n, false); err != nil {
				return p.fail(ctx, rep.ID, err)
			}
		}
	}

	if err := p.propagateNegativeUpdate(ctx, rep.ReporterInteractionHashedID, rep.STITypes, now); err != nil {
		return p.fail(ctx, rep.ID, err)
	}

	return p.store.Update(ctx, store.Reports, rep.ID, map[string]any{
		"status":      models.StatusCompleted,
		"processedAt": now,
	})
}

// DeleteExposureReport implements spec.md §4.9's retraction path:
// mark every notification for the report deletedAt, fan out
// REPORT_DELETED pushes, then delete the report document last.
func (p *Processor) DeleteExposureReport(ctx context.Context, callerUID, reportID string, now int64) error {
	var rep models.Report
	if err := p.store.Get(ctx, store.Reports, reportID, &rep); err != nil {
		return err
	}
	var caller models.User
	if err := p.store.Get(ctx, store.Users, callerUID, &caller); err != nil {
		return err
	}
	if rep.ReporterID != hashing.Report(callerUID) {
		return store.NewPermissionDenied("caller is not the owner of this report")
	}

	snaps, err := p.store.Query(ctx, store.Notifications, "reportId", reportID, store.QueryOptions{})
	if err != nil {
		return err
	}

	recipientIDs := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var n models.Notification
		if err := snap.Unmarshal(&n); err != nil {
			continue
		}
		n.DeletedAt = now
		if err := p.store.Set(ctx, store.Notifications, snap.ID, n, false); err != nil {
			log.Printf("report: failed marking notification %s deleted: %v", snap.ID, err)
			continue
		}
		recipientIDs = append(recipientIDs, n.RecipientID)
	}

	if err := p.fanOutReportDeleted(ctx, recipientIDs); err != nil {
		log.Printf("report: partial failure fanning out REPORT_DELETED pushes: %v", err)
	}

	return p.store.Delete(ctx, store.Reports, reportID)
}

func (p *Processor) fanOutReportDeleted(ctx context.Context, recipientIDs []string) error {
	unique := dedupe(recipientIDs)
	fb := batch.NewFCMBatcher(p.dispatcher)

	for start := 0; start < len(unique); start += store.QueryInBatchCap {
		end := start + store.QueryInBatchCap
		if end > len(unique) {
			end = len(unique)
		}
		snaps, err := p.store.QueryIn(ctx, store.Users, "hashedNotificationId", unique[start:end])
		if err != nil {
			return err
		}
		for _, snap := range snaps {
			var u models.User
			if err := snap.Unmarshal(&u); err != nil {
				continue
			}
			fb.Add(push.Record{
				Token:       u.FCMToken,
				Type:        string(models.TypeReportDeleted),
				TitleLocKey: push.TitleDeleted,
				BodyLocKey:  push.BodyDeleted,
			})
		}
	}
	fb.Send(ctx)
	return nil
}

func dedupe(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// GetChainLinkInfo implements the pure-read operation from spec.md
// §4.9/§4.10.
func (p *Processor) GetChainLinkInfo(ctx context.Context, callerUID string, stiType string) (hasExistingNotification bool, linkedReportID string, err error) {
	var caller models.User
	if err := p.store.Get(ctx, store.Users, callerUID, &caller); err != nil {
		return false, "", err
	}
	linked, err := p.detectChainLink(ctx, caller.HashedNotificationID, []string{stiType})
	if err != nil {
		return false, "", err
	}
	return linked != "", linked, nil
}

var savedIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{20,40}$`)

// ValidateSavedID enforces the account-recovery id format from
// spec.md §4.9.
func ValidateSavedID(savedID string) error {
	if !savedIDPattern.MatchString(savedID) {
		return store.NewInvalidArgument("savedId does not match the required format")
	}
	return nil
}

// RecoverAccount verifies savedId refers to an existing user. Minting
// the platform's custom auth token is left to the caller (C10), which
// holds the auth client handle.
func (p *Processor) RecoverAccount(ctx context.Context, savedID string) (models.User, error) {
	if err := ValidateSavedID(savedID); err != nil {
		return models.User{}, err
	}
	var u models.User
	if err := p.store.Get(ctx, store.Users, savedID, &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// ExportUserData implements the GDPR export operation: returns the
// user document plus every interaction, notification, and report they
// own, for the caller to serialize.
type ExportBundle struct {
	User          models.User
	Interactions  []models.Interaction
	Notifications []models.Notification
	Reports       []models.Report
}

func (p *Processor) ExportUserData(ctx context.Context, uid string) (ExportBundle, error) {
	var u models.User
	if err := p.store.Get(ctx, store.Users, uid, &u); err != nil {
		return ExportBundle{}, err
	}

	interactionSnaps, err := p.store.Query(ctx, store.Interactions, "ownerId", u.HashedInteractionID, store.QueryOptions{})
	if err != nil {
		return ExportBundle{}, err
	}
	notifSnaps, err := p.store.Query(ctx, store.Notifications, "recipientId", u.HashedNotificationID, store.QueryOptions{})
	if err != nil {
		return ExportBundle{}, err
	}
	reportSnaps, err := p.store.Query(ctx, store.Reports, "reporterId", hashing.Report(uid), store.QueryOptions{})
	if err != nil {
		return ExportBundle{}, err
	}

	bundle := ExportBundle{User: u}
	for _, s := range interactionSnaps {
		var i models.Interaction
		if s.Unmarshal(&i) == nil {
			bundle.Interactions = append(bundle.Interactions, i)
		}
	}
	for _, s := range notifSnaps {
		var n models.Notification
		if s.Unmarshal(&n) == nil {
			bundle.Notifications = append(bundle.Notifications, n)
		}
	}
	for _, s := range reportSnaps {
		var r models.Report
		if s.Unmarshal(&r) == nil {
			bundle.Reports = append(bundle.Reports, r)
		}
	}
	return bundle, nil
}
