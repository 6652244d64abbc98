// Package codec converts villages to the document layout used by remote
// document stores and back.
//
// The playerInfo mapping is stored as-is. The maps list and the privateState
// mapping are stored as encoded text, tagged with the Encoding that produced
// them so Decode can dispatch without guessing from field presence. Documents
// without a tag are legacy documents carrying native maps and privateState.
//
//	c, _ := codec.New(codec.EncodingMsgpack)
//	doc, err := c.Encode(v)
//	rec, err := c.Decode(doc)
package codec
