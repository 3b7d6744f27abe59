package service

import "strings"

// MaskEmail hides the localpart of an address for log output.
// "anna.berg@acme.se" becomes "an***@acme.se".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local := email[:at]
	domain := email[at+1:]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}

// MaskPhone hides the subscriber digits of an E.164 number for log output.
// "+46841234567" becomes "+46****67".
func MaskPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if len(phone) < 5 || !strings.HasPrefix(phone, "+") {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-2:]
}

// MaskEmails masks a list element-wise.
func MaskEmails(emails []string) []string {
	masked := make([]string, len(emails))
	for i, email := range emails {
		masked[i] = MaskEmail(email)
	}
	return masked
}

// MaskPhones masks a list element-wise.
func MaskPhones(phones []string) []string {
	masked := make([]string, len(phones))
	for i, phone := range phones {
		masked[i] = MaskPhone(phone)
	}
	return masked
}
