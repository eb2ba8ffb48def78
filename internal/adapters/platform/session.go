package platform

import (
	"context"
	"fmt"
)

// CookieSession assembles the platform session cookie from its four
// fields. The schedule and resolve endpoints accept an anonymous
// session, so an entirely empty CookieSession falls back to the
// minimal cookie instead of failing.
type CookieSession struct {
	FID string
	UID string
	D   string
	VC3 string
}

func (s CookieSession) SessionHeaders(context.Context) (map[string]string, error) {
	cookie := "UID=2"
	if s.FID != "" || s.UID != "" || s.D != "" || s.VC3 != "" {
		cookie = fmt.Sprintf("fid=%s; _d=%s; UID=%s; vc3=%s", s.FID, s.D, s.UID, s.VC3)
	}
	return map[string]string{"Cookie": cookie}, nil
}
