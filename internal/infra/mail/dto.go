package mail

type LeadEmailData struct {
	Name  string
	Phone string
	Card  string
}

type LeadEmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string

	dialer dialer
}
