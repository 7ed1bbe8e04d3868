package app

import "time"

// BannerKind is the style of a transient message
type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
)

// Banner is a message that dismisses itself once ExpiresAt has passed
type Banner struct {
	Kind      BannerKind `json:"kind"`
	Message   string     `json:"message"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (b *Banner) activeAt(now time.Time) bool {
	return b != nil && now.Before(b.ExpiresAt)
}

func (a *App) flashLocked(kind BannerKind, msg string) {
	a.banner = &Banner{
		Kind:      kind,
		Message:   msg,
		ExpiresAt: a.now().Add(a.bannerTTL),
	}
}

func (a *App) flash(kind BannerKind, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flashLocked(kind, msg)
}

// Banner returns the current banner, or nil once it expired
func (a *App) Banner() *Banner {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.banner.activeAt(a.now()) {
		a.banner = nil
		return nil
	}
	b := *a.banner
	return &b
}

// DismissBanner removes the current banner
func (a *App) DismissBanner() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.banner = nil
}
