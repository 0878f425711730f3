package services

import (
	"context"
	"time"

	"collabmatch_sync/cache"
	"collabmatch_sync/models"
)

// NotificationAPI is the slice of the remote client the notification flows
// need.
type NotificationAPI interface {
	ListNotifications(ctx context.Context, page, limit int, unreadOnly bool) (*models.NotificationPage, error)
	GetNotification(ctx context.Context, id string) (*models.Notification, error)
	GetUnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) (*models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// NotificationService keeps the notification list and the unread badge in
// sync. The unread count lives under its own key so the realtime bridge can
// force an authoritative refetch cheaply. Read-state mutations follow the
// same optimistic pattern as match actions: patch first, send, then commit
// or apply the recorded inverse. Inverses are scoped to the touched
// notifications, same as the mutation coordinator's, so undoing a failed
// markRead never drags whole pages back to their pre-dispatch bytes.
type NotificationService struct {
	Cache  *cache.Store
	Client NotificationAPI
}

// List returns one page of notifications. Each successful fetch also seeds
// the unread-count key from the page envelope, superseding any in-flight
// count fetch (both values are server-authoritative; the later dispatch
// wins).
func (ns *NotificationService) List(ctx context.Context, page, limit int, unreadOnly bool) (cache.Entry, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	key := notificationsKey(page, limit, unreadOnly)
	ns.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		result, err := ns.Client.ListNotifications(ctx, page, limit, unreadOnly)
		if err != nil {
			return nil, err
		}
		ns.Cache.Set(models.ClassUnreadCount, result.UnreadCount, time.Now())
		return result, nil
	})
	return ns.Cache.Fetch(ctx, key, false)
}

// Get returns one notification's detail entry.
func (ns *NotificationService) Get(ctx context.Context, id string) (cache.Entry, error) {
	key := NotificationDetailKey(id)
	ns.Cache.RegisterFetcher(key, func(ctx context.Context) (any, error) {
		return ns.Client.GetNotification(ctx, id)
	})
	return ns.Cache.Fetch(ctx, key, false)
}

// UnreadCount returns the badge count, cached under its own key.
func (ns *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	ns.ensureUnreadFetcher()
	entry, err := ns.Cache.Fetch(ctx, models.ClassUnreadCount, false)
	if err != nil {
		return 0, err
	}
	count, _ := entry.Data.(int)
	return count, nil
}

// RefreshUnread forces an authoritative unread-count refetch, superseding
// any in-flight poll. The badge must always reflect the server's count, not
// local arithmetic, so a push event and a concurrent poll can never
// double-apply.
func (ns *NotificationService) RefreshUnread(ctx context.Context) (int, error) {
	ns.ensureUnreadFetcher()
	key := models.ClassUnreadCount
	token := ns.Cache.ForceFetch(key)
	count, err := ns.Client.GetUnreadCount(ctx)
	if ctx.Err() != nil {
		ns.Cache.CancelFetch(key, token)
		return 0, ctx.Err()
	}
	ns.Cache.CompleteFetch(key, token, count, err)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkRead flips one notification to read, optimistically.
func (ns *NotificationService) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	var inverse []inversePatch

	wasUnread := false
	for _, key := range ns.Cache.Keys(models.ClassNotifications) {
		ns.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.NotificationPage)
			if !ok {
				return data
			}
			index := indexOfNotification(page, id)
			if index < 0 || page.Notifications[index].Read {
				return data
			}
			orig := page.Notifications[index]
			wasUnread = true
			inverse = append(inverse, inversePatch{key, func(d any) any {
				p, ok := d.(*models.NotificationPage)
				if !ok || indexOfNotification(p, id) < 0 {
					return d
				}
				out := replaceNotification(p, orig)
				out.UnreadCount++
				return out
			}})
			updated, _ := setNotificationRead(page, id)
			return updated
		})
	}
	detailKey := NotificationDetailKey(id)
	ns.Cache.Patch(detailKey, func(data any) any {
		notification, ok := data.(*models.Notification)
		if !ok || notification.Read {
			return data
		}
		orig := *notification
		wasUnread = true
		inverse = append(inverse, inversePatch{detailKey, func(any) any {
			restored := orig
			return &restored
		}})
		updated := orig
		updated.Read = true
		return &updated
	})
	if wasUnread {
		ns.Cache.Patch(models.ClassUnreadCount, decrementCount)
		inverse = append(inverse, inversePatch{models.ClassUnreadCount, incrementCount})
	}

	updated, err := ns.Client.MarkNotificationRead(ctx, id)
	if err != nil {
		ns.undo(inverse)
		return nil, err
	}

	ns.commitNotification(*updated)
	return updated, nil
}

// MarkAllRead flips every notification to read and zeroes the badge,
// optimistically.
func (ns *NotificationService) MarkAllRead(ctx context.Context) error {
	var inverse []inversePatch

	for _, key := range ns.Cache.Keys(models.ClassNotifications) {
		ns.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.NotificationPage)
			if !ok {
				return data
			}
			unread := unreadNotifications(page)
			if len(unread) == 0 && page.UnreadCount == 0 {
				return data
			}
			prevCount := page.UnreadCount
			inverse = append(inverse, inversePatch{key, func(d any) any {
				p, ok := d.(*models.NotificationPage)
				if !ok {
					return d
				}
				out := p
				for _, orig := range unread {
					out = replaceNotification(out, orig)
				}
				restored := *out
				restored.UnreadCount = prevCount
				return &restored
			}})
			return setAllRead(page)
		})
	}
	for _, key := range ns.Cache.Keys(models.ClassNotificationDetail) {
		ns.Cache.Patch(key, func(data any) any {
			notification, ok := data.(*models.Notification)
			if !ok || notification.Read {
				return data
			}
			orig := *notification
			inverse = append(inverse, inversePatch{key, func(any) any {
				restored := orig
				return &restored
			}})
			updated := orig
			updated.Read = true
			return &updated
		})
	}
	var prevBadge any
	badged := ns.Cache.Patch(models.ClassUnreadCount, func(data any) any {
		prevBadge = data
		return 0
	})
	if badged {
		inverse = append(inverse, inversePatch{models.ClassUnreadCount, func(any) any { return prevBadge }})
	}

	if err := ns.Client.MarkAllNotificationsRead(ctx); err != nil {
		ns.undo(inverse)
		return err
	}
	return nil
}

// Delete removes a notification, optimistically.
func (ns *NotificationService) Delete(ctx context.Context, id string) error {
	var inverse []inversePatch

	wasUnread := false
	for _, key := range ns.Cache.Keys(models.ClassNotifications) {
		ns.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.NotificationPage)
			if !ok {
				return data
			}
			index := indexOfNotification(page, id)
			if index < 0 {
				return data
			}
			orig := page.Notifications[index]
			if !orig.Read {
				wasUnread = true
			}
			inverse = append(inverse, inversePatch{key, func(d any) any {
				p, ok := d.(*models.NotificationPage)
				if !ok {
					return d
				}
				return insertNotificationAt(p, index, orig)
			}})
			updated, _ := removeNotification(page, id)
			return updated
		})
	}
	if wasUnread {
		ns.Cache.Patch(models.ClassUnreadCount, decrementCount)
		inverse = append(inverse, inversePatch{models.ClassUnreadCount, incrementCount})
	}

	if err := ns.Client.DeleteNotification(ctx, id); err != nil {
		ns.undo(inverse)
		return err
	}

	ns.Cache.Invalidate(func(key string) bool { return key == NotificationDetailKey(id) })
	return nil
}

func (ns *NotificationService) ensureUnreadFetcher() {
	ns.Cache.RegisterFetcher(models.ClassUnreadCount, func(ctx context.Context) (any, error) {
		return ns.Client.GetUnreadCount(ctx)
	})
}

// undo applies a recorded inverse patch, newest step first.
func (ns *NotificationService) undo(inverse []inversePatch) {
	for i := len(inverse) - 1; i >= 0; i-- {
		ns.Cache.Patch(inverse[i].key, inverse[i].undo)
	}
}

// commitNotification replaces the optimistic copy with the server's payload
// wherever it is cached.
func (ns *NotificationService) commitNotification(notification models.Notification) {
	for _, key := range ns.Cache.Keys(models.ClassNotifications) {
		ns.Cache.Patch(key, func(data any) any {
			page, ok := data.(*models.NotificationPage)
			if !ok {
				return data
			}
			return replaceNotification(page, notification)
		})
	}
	ns.Cache.Patch(NotificationDetailKey(notification.ID), func(any) any {
		committed := notification
		return &committed
	})
}

// NotificationDetailKey is the cache key for one notification's detail view.
func NotificationDetailKey(id string) string {
	return cache.BuildKey(models.ClassNotificationDetail, map[string]any{"id": id})
}

func notificationsKey(page, limit int, unreadOnly bool) string {
	params := map[string]any{"page": page, "limit": limit}
	if unreadOnly {
		params["unreadOnly"] = true
	}
	return cache.BuildKey(models.ClassNotifications, params)
}

func decrementCount(data any) any {
	if count, ok := data.(int); ok && count > 0 {
		return count - 1
	}
	return data
}

func incrementCount(data any) any {
	if count, ok := data.(int); ok {
		return count + 1
	}
	return data
}

func indexOfNotification(page *models.NotificationPage, id string) int {
	for i, notification := range page.Notifications {
		if notification.ID == id {
			return i
		}
	}
	return -1
}

// unreadNotifications returns copies of the page's unread entries, taken
// before setAllRead flips them.
func unreadNotifications(page *models.NotificationPage) []models.Notification {
	var out []models.Notification
	for _, notification := range page.Notifications {
		if !notification.Read {
			out = append(out, notification)
		}
	}
	return out
}

// insertNotificationAt re-inserts a deleted notification at its original
// position. A page that already shows it again is left alone.
func insertNotificationAt(page *models.NotificationPage, index int, notification models.Notification) *models.NotificationPage {
	if indexOfNotification(page, notification.ID) >= 0 {
		return page
	}
	if index < 0 {
		index = 0
	}
	if index > len(page.Notifications) {
		index = len(page.Notifications)
	}
	out := &models.NotificationPage{
		Notifications: make([]models.Notification, 0, len(page.Notifications)+1),
		Pagination:    page.Pagination,
		UnreadCount:   page.UnreadCount,
	}
	out.Notifications = append(out.Notifications, page.Notifications[:index]...)
	out.Notifications = append(out.Notifications, notification)
	out.Notifications = append(out.Notifications, page.Notifications[index:]...)
	out.Pagination.Total++
	if !notification.Read {
		out.UnreadCount++
	}
	return out
}

// setNotificationRead returns a copy of page with id marked read; changed
// reports whether it was unread before.
func setNotificationRead(page *models.NotificationPage, id string) (*models.NotificationPage, bool) {
	out := &models.NotificationPage{
		Notifications: append([]models.Notification(nil), page.Notifications...),
		Pagination:    page.Pagination,
		UnreadCount:   page.UnreadCount,
	}
	changed := false
	for i := range out.Notifications {
		if out.Notifications[i].ID == id && !out.Notifications[i].Read {
			out.Notifications[i].Read = true
			changed = true
		}
	}
	if changed && out.UnreadCount > 0 {
		out.UnreadCount--
	}
	return out, changed
}

func setAllRead(page *models.NotificationPage) *models.NotificationPage {
	out := &models.NotificationPage{
		Notifications: append([]models.Notification(nil), page.Notifications...),
		Pagination:    page.Pagination,
	}
	for i := range out.Notifications {
		out.Notifications[i].Read = true
	}
	return out
}

// removeNotification returns a copy of page without id; removedUnread
// reports whether the removed notification was unread.
func removeNotification(page *models.NotificationPage, id string) (*models.NotificationPage, bool) {
	out := &models.NotificationPage{
		Notifications: make([]models.Notification, 0, len(page.Notifications)),
		Pagination:    page.Pagination,
		UnreadCount:   page.UnreadCount,
	}
	removedUnread := false
	removed := false
	for _, notification := range page.Notifications {
		if notification.ID == id {
			removed = true
			removedUnread = !notification.Read
			continue
		}
		out.Notifications = append(out.Notifications, notification)
	}
	if removed {
		if out.Pagination.Total > 0 {
			out.Pagination.Total--
		}
		if removedUnread && out.UnreadCount > 0 {
			out.UnreadCount--
		}
	}
	return out, removedUnread
}

func replaceNotification(page *models.NotificationPage, notification models.Notification) *models.NotificationPage {
	out := &models.NotificationPage{
		Notifications: append([]models.Notification(nil), page.Notifications...),
		Pagination:    page.Pagination,
		UnreadCount:   page.UnreadCount,
	}
	for i := range out.Notifications {
		if out.Notifications[i].ID == notification.ID {
			out.Notifications[i] = notification
		}
	}
	return out
}
