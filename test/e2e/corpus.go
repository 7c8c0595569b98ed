package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/mailsift/internal/classifier"
)

// Encoding is how a corpus message is written to disk.
type Encoding int

const (
	EncodingPlain           Encoding = iota // single-part .eml, 7bit body
	EncodingQuotedPrintable                 // .eml, encoded subject and quoted-printable body
	EncodingMultipart                       // .eml, multipart/alternative with a base64 text part
	EncodingText                            // bare .txt with the subject as the first line
)

var encodingNames = map[Encoding]string{
	EncodingPlain:           "plain",
	EncodingQuotedPrintable: "qp",
	EncodingMultipart:       "multipart",
	EncodingText:            "text",
}

func (e Encoding) String() string {
	if n, ok := encodingNames[e]; ok {
		return n
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// E2EMessage is one labelled message of the corpus.
type E2EMessage struct {
	ID       string
	Subject  string
	Body     string
	Label    classifier.Prediction // expected keyword-engine verdict
	Encoding Encoding
}

// Text is the subject and body as the extractor returns them.
func (m E2EMessage) Text() string {
	return m.Subject + "\n\n" + m.Body
}

// Corpus is a labelled set of messages for end-to-end classification tests.
type Corpus struct {
	Messages  []E2EMessage
	SpamCount int
	HamCount  int
}

var spamMessages = [][2]string{
	{"You are a WINNER", "Congratulations, your ticket was drawn. Reply with your bank details to claim."},
	{"Lottery results", "Your email address won the international lottery. Send the processing fee today."},
	{"Limited offer", "Buy now and get 80% discount on all watches."},
	{"Cheap meds", "Order v1agra online with no prescription."},
	{"Fr33 gift card", "Click the link to claim a fr33 gift card."},
	{"Act fast", "BUY   NOW, before stock runs out."},
	{"Exclusive d1sc0unt", "Members only pricing this weekend."},
	{"Prize notice", "You have been selected as this month's w1nn3r."},
	{"Reactivate", "Your account qualifies for a free upgrade, confirm your password here."},
	{"Pharmacy", "Genuine VIAGRA shipped overnight."},
	{"Final notice", "Claim your lottery payout of 2,500,000 USD."},
	{"Big sale", "Huge discount on designer bags, this week only."},
}

var hamMessages = [][2]string{
	{"Standup notes", "Notes from today's standup are attached. Please review the action items before Friday."},
	{"Lunch on Thursday?", "Are you around for lunch on Thursday? The new place near the office opened last week."},
	{"Invoice 2041", "Please find attached the invoice for March. Payment is due within thirty days."},
	{"Weekend plans", "We are driving to the lake on Saturday. Let me know if you want a ride."},
	{"Code review", "I left a few comments on your pull request. The retry logic looks good to me."},
	{"Quarterly report", "The quarterly report draft is in the shared folder. Numbers for Q3 are still being checked."},
	{"Dentist appointment", "This is a reminder of your appointment on Tuesday at 10:30."},
	{"Book club", "Next month we are reading a mystery novel. Bring snacks if you can."},
	{"Server maintenance", "The database servers will be patched tonight between 22:00 and 23:00."},
	{"Happy birthday", "Hope you have a wonderful day. Dinner is on us this weekend."},
	{"Travel itinerary", "Your flight leaves at 08:15 and the hotel check in is after 15:00."},
	{"Re: project timeline", "Thanks for the update. Moving the launch by one week works for the team."},
}

// BuildCorpus returns the labelled corpus. Encodings rotate so every label is written in every
// encoding.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	add := func(prefix string, label classifier.Prediction, msgs [][2]string) {
		for i, m := range msgs {
			c.Messages = append(c.Messages, E2EMessage{
				ID:       fmt.Sprintf("%s-%02d", prefix, i+1),
				Subject:  m[0],
				Body:     m[1],
				Label:    label,
				Encoding: Encoding(i % len(encodingNames)),
			})
		}
	}
	add("spam", classifier.Spam, spamMessages)
	add("ham", classifier.Ham, hamMessages)
	c.SpamCount = len(spamMessages)
	c.HamCount = len(hamMessages)
	return c
}

// ByID returns the message with id.
func (c *Corpus) ByID(id string) (E2EMessage, bool) {
	for _, m := range c.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return E2EMessage{}, false
}

// IDFromFileName recovers the message ID from a file written by WriteMessage.
func IDFromFileName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return name
}
