package controlapi

import "netshare/notify"

func shareEvent(message, shareID string) notify.Event {
	return notify.Event{
		Level:   notify.LevelInfo,
		Source:  "registry",
		Message: message,
		Data:    map[string]any{"shareId": shareID},
	}
}

func peerEvent(message, deviceID string) notify.Event {
	return notify.Event{
		Level:   notify.LevelInfo,
		Source:  "peerdir",
		Message: message,
		Data:    map[string]any{"deviceId": deviceID},
	}
}

func transferEvent(message, transferID string, done, total int64, state string) notify.Event {
	return notify.Event{
		Level:   notify.LevelInfo,
		Source:  "transfer",
		Message: message,
		Data: map[string]any{
			"transferId": transferID,
			"done":       done,
			"total":      total,
			"state":      state,
		},
	}
}
