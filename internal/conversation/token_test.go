package conversation_test

import (
	"encoding/base64"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"afterlife.app/publisher/internal/conversation"
)

var _ = Describe("Codec", func() {
	var codec *conversation.Codec

	BeforeEach(func() {
		codec = conversation.NewCodec("bot-secret")
	})

	DescribeTable("round-trips every kind",
		func(kind conversation.Kind) {
			in := conversation.Token{Kind: kind, OperatorID: 123456789, DraftID: 1799999999999999999}
			encoded := codec.Encode(in)

			Expect(len(encoded)).To(BeNumerically("<=", 64))
			out, err := codec.Decode(encoded)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(in))
		},
		Entry("confirm", conversation.KindConfirm),
		Entry("cancel", conversation.KindCancel),
		Entry("notes yes", conversation.KindNotesYes),
		Entry("notes no", conversation.KindNotesNo),
	)

	It("keeps negative ids intact", func() {
		in := conversation.Token{Kind: conversation.KindCancel, OperatorID: -42, DraftID: 7}
		out, err := codec.Decode(codec.Encode(in))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.OperatorID).To(Equal(int64(-42)))
	})

	It("rejects legacy colon-delimited payloads", func() {
		_, err := codec.Decode("confirm_send:surya:zero:123")
		Expect(err).To(MatchError(conversation.ErrMalformedToken))
	})

	It("rejects tokens signed with another secret", func() {
		other := conversation.NewCodec("another-secret")
		encoded := other.Encode(conversation.Token{Kind: conversation.KindConfirm, OperatorID: 1, DraftID: 2})

		_, err := codec.Decode(encoded)
		Expect(err).To(MatchError(conversation.ErrMalformedToken))
	})

	It("rejects a token whose operator was rewritten", func() {
		encoded := codec.Encode(conversation.Token{Kind: conversation.KindConfirm, OperatorID: 1, DraftID: 2})
		raw, err := base64.RawURLEncoding.DecodeString(encoded)
		Expect(err).NotTo(HaveOccurred())
		raw[8] = 2

		_, err = codec.Decode(base64.RawURLEncoding.EncodeToString(raw))
		Expect(err).To(MatchError(conversation.ErrMalformedToken))
	})

	It("rejects truncated tokens", func() {
		encoded := codec.Encode(conversation.Token{Kind: conversation.KindConfirm, OperatorID: 1, DraftID: 2})
		_, err := codec.Decode(encoded[:len(encoded)-3])
		Expect(err).To(MatchError(conversation.ErrMalformedToken))
	})

	It("authorizes only the encoded operator regardless of kind", func() {
		for _, kind := range []conversation.Kind{
			conversation.KindConfirm, conversation.KindCancel, conversation.KindNotesYes, conversation.KindNotesNo,
		} {
			tok := conversation.Token{Kind: kind, OperatorID: 100, DraftID: 1}
			Expect(tok.AuthorizedFor(100)).To(BeTrue())
			Expect(tok.AuthorizedFor(200)).To(BeFalse(), kind.String())
		}
	})
})
