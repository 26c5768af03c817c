package content

import "slices"

// Sounds the toast audio element accepts.
var windowsSounds = []string{
	"ms-winsoundevent:Notification.Default",
	"ms-winsoundevent:Notification.IM",
	"ms-winsoundevent:Notification.Mail",
	"ms-winsoundevent:Notification.Reminder",
	"ms-winsoundevent:Notification.SMS",
	"ms-winsoundevent:Notification.Looping.Alarm",
	"ms-winsoundevent:Notification.Looping.Alarm2",
	"ms-winsoundevent:Notification.Looping.Alarm3",
	"ms-winsoundevent:Notification.Looping.Alarm4",
	"ms-winsoundevent:Notification.Looping.Alarm5",
	"ms-winsoundevent:Notification.Looping.Alarm6",
	"ms-winsoundevent:Notification.Looping.Alarm7",
	"ms-winsoundevent:Notification.Looping.Alarm8",
	"ms-winsoundevent:Notification.Looping.Alarm9",
	"ms-winsoundevent:Notification.Looping.Alarm10",
	"ms-winsoundevent:Notification.Looping.Call",
	"ms-winsoundevent:Notification.Looping.Call2",
	"ms-winsoundevent:Notification.Looping.Call3",
	"ms-winsoundevent:Notification.Looping.Call4",
	"ms-winsoundevent:Notification.Looping.Call5",
	"ms-winsoundevent:Notification.Looping.Call6",
	"ms-winsoundevent:Notification.Looping.Call7",
	"ms-winsoundevent:Notification.Looping.Call8",
	"ms-winsoundevent:Notification.Looping.Call9",
	"ms-winsoundevent:Notification.Looping.Call10",
}

// IsSupportedSound reports whether name is a sound the toast renderer can play.
func IsSupportedSound(name string) bool {
	return slices.Contains(windowsSounds, name)
}
