package wsserver

// subscriptionBimap is a two-way mapping between client-chosen subscription
// ids and channel ids for a single session. Mirroring the reference
// implementation's bimap, it never lets one side silently overwrite the
// other: a subscription id already in use, or a channel already
// subscribed to, must be rejected explicitly by the caller rather than
// clobbered.
type subscriptionBimap struct {
	idToChannel map[uint32]uint64
	channelToID map[uint64]uint32
}

func newSubscriptionBimap() *subscriptionBimap {
	return &subscriptionBimap{
		idToChannel: make(map[uint32]uint64),
		channelToID: make(map[uint64]uint32),
	}
}

func (b *subscriptionBimap) containsLeft(subID uint32) bool {
	_, ok := b.idToChannel[subID]
	return ok
}

func (b *subscriptionBimap) containsRight(channelID uint64) bool {
	_, ok := b.channelToID[channelID]
	return ok
}

// insertNoOverwrite adds subID <-> channelID, returning false without
// modifying the map if either side is already present.
func (b *subscriptionBimap) insertNoOverwrite(subID uint32, channelID uint64) bool {
	if b.containsLeft(subID) || b.containsRight(channelID) {
		return false
	}
	b.idToChannel[subID] = channelID
	b.channelToID[channelID] = subID
	return true
}

func (b *subscriptionBimap) subscriptionFor(channelID uint64) (uint32, bool) {
	subID, ok := b.channelToID[channelID]
	return subID, ok
}

func (b *subscriptionBimap) removeByID(subID uint32) (uint64, bool) {
	channelID, ok := b.idToChannel[subID]
	if !ok {
		return 0, false
	}
	delete(b.idToChannel, subID)
	delete(b.channelToID, channelID)
	return channelID, true
}

func (b *subscriptionBimap) removeByChannel(channelID uint64) (uint32, bool) {
	subID, ok := b.channelToID[channelID]
	if !ok {
		return 0, false
	}
	delete(b.channelToID, channelID)
	delete(b.idToChannel, subID)
	return subID, true
}
