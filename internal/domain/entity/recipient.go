package entity

// Channel is one delivery mechanism.
type Channel string

const (
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// AllChannels lists every channel in a stable order.
// Grouping and result ordering follow this order.
var AllChannels = []Channel{ChannelPush, ChannelEmail, ChannelSMS, ChannelWhatsApp}

// Locale is the language a recipient reads notifications in.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleAR Locale = "ar"
)

// DefaultLocale is used whenever a recipient carries no locale.
const DefaultLocale = LocaleEN

// OrDefault returns the locale, or DefaultLocale when empty.
func (l Locale) OrDefault() Locale {
	if l == "" {
		return DefaultLocale
	}
	return l
}

// Recipient is an addressable user. Email, Phone and PushToken are optional;
// an empty string means the contact field is absent.
type Recipient struct {
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	PushToken         string    `json:"pushToken,omitempty"`
	Locale            Locale    `json:"locale"`
	PreferredChannels []Channel `json:"preferredChannels"`
}

// ContactFor returns the contact field a channel needs and whether it is present.
// PreferredChannels expresses intent only; callers must re-check contactability here.
func (r Recipient) ContactFor(ch Channel) (string, bool) {
	var contact string
	switch ch {
	case ChannelEmail:
		contact = r.Email
	case ChannelSMS, ChannelWhatsApp:
		contact = r.Phone
	case ChannelPush:
		contact = r.PushToken
	}
	return contact, contact != ""
}
