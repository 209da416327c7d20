package transfer

import eventemitter "github.com/vansante/go-event-emitter"

const (
	// DiscoveredSiteEvent has arguments: target string, profile *sniff.Profile
	DiscoveredSiteEvent eventemitter.EventType = "discovered-site"
	// SavingPartEvent has arguments: entry string, target string
	SavingPartEvent eventemitter.EventType = "saving-part"
	// SavedPartEvent has arguments: entry archive.EntryInfo
	SavedPartEvent eventemitter.EventType = "saved-part"
	// LoadingPartEvent has arguments: entry string, target string
	LoadingPartEvent eventemitter.EventType = "loading-part"
	// PartProgressEvent has arguments: entry string, bytes int64
	PartProgressEvent eventemitter.EventType = "part-progress"
	// LoadedPartEvent has arguments: entry string, bytes int64
	LoadedPartEvent eventemitter.EventType = "loaded-part"
	// ClonedRepositoryEvent has arguments: remote sspak.GitRemote, path string
	ClonedRepositoryEvent eventemitter.EventType = "cloned-repository"
)
