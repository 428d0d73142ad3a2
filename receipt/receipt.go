// Package receipt defines MessageReceipt, the annotation an inbound
// transport attaches to every decrypted wire message describing who it was
// actually encrypted to and from. It is a leaf package so both connection
// (which consumes a receipt in accept_response) and inbound (which produces
// one while resolving which connection a message belongs to) can depend on
// it without forming a cycle with each other.
package receipt

// MessageReceipt carries the sender/recipient identity an unpacking layer
// established while decrypting an inbound DIDComm envelope.
type MessageReceipt struct {
	// SenderVerkey is the verkey the envelope was signed/encrypted with on
	// the other end, empty for anoncrypt envelopes with no sender key.
	SenderVerkey string

	// RecipientVerkey is the verkey of the local key the envelope was
	// encrypted to.
	RecipientVerkey string

	// SenderDID and RecipientDID are filled in once the resolver has
	// mapped each verkey to a DID; both start empty.
	SenderDID string
	RecipientDID string

	// RecipientDIDPublic is true when RecipientVerkey belongs to this
	// agent's public DID rather than a pairwise local DID.
	RecipientDIDPublic bool
}
