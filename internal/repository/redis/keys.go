package redis

import "fmt"

const ns = "matchtix:v1"

func KeyEventSummary(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:summary", ns, eventID)
}

func KeyEventSections(eventID int64) string {
	return fmt.Sprintf("%s:event:%d:sections", ns, eventID)
}

func KeySectionAvailability(sectionID int64) string {
	return fmt.Sprintf("%s:section:%d:availability", ns, sectionID)
}

func KeyIdemBooking(requesterID int64, idemKey string) string {
	return fmt.Sprintf("%s:idem:bookings:%d:%s", ns, requesterID, idemKey)
}

func ChannelSectionsChanged() string {
	return ns + ":sections:changed"
}
