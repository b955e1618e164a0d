package i18n

import (
	"html"
	"strconv"
	"strings"
	"time"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	VerifySubject string
	VerifyText    string
	VerifyHTML    string

	ResetSubject string
	ResetText    string
	ResetHTML    string

	WelcomeSubject string
	WelcomeText    string
	WelcomeHTML    string

	SignInSubject string
	SignInText    string
	SignInHTML    string

	Minutes       string
	Hours         string
	UnknownIP     string
	UnknownDevice string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		VerifySubject: "Account verification code",
		VerifyText:    "Your verification code is {code}. Verify your account using this code. It is valid for {validity}.",
		VerifyHTML: "<p>Verify your account</p>" +
			"<p>Use the code below to verify {email}.</p>" +
			"<p><strong>{code}</strong></p>" +
			"<p>The code is valid for {validity}.</p>" +
			"<p>If you did not request this, you can ignore this email.</p>",

		ResetSubject: "Password reset code",
		ResetText:    "Your password reset code is {code}. Use it to reset your password. It is valid for {validity}.\nIf you did not request this, ignore this email.",
		ResetHTML: "<p>Password reset</p>" +
			"<p>Use the code below to reset the password for {email}.</p>" +
			"<p><strong>{code}</strong></p>" +
			"<p>The code is valid for {validity}.</p>" +
			"<p>If you did not request this, ignore this email.</p>",

		WelcomeSubject: "Welcome",
		WelcomeText:    "Welcome! Your account has been created with the email id: {email}",
		WelcomeHTML: "<p>Welcome!</p>" +
			"<p>Your account has been created with the email id: {email}</p>" +
			"<p>Remember to verify your email address.</p>",

		SignInSubject: "New sign-in to your account",
		SignInText:    "A new sign-in to {email} happened at {time} from {ip} ({device}). If this was not you, reset your password.",
		SignInHTML: "<p>New sign-in detected</p>" +
			"<p>Account: {email}</p>" +
			"<p>Time: {time}</p>" +
			"<p>IP address: {ip}</p>" +
			"<p>Device: {device}</p>" +
			"<p>If this was not you, reset your password.</p>",

		Minutes:       "minutes",
		Hours:         "hours",
		UnknownIP:     "unknown address",
		UnknownDevice: "unknown device",
	},
	"de": {
		VerifySubject: "Bestätigungscode für dein Konto",
		VerifyText:    "Dein Bestätigungscode lautet {code}. Er ist {validity} gültig.",
		VerifyHTML: "<p>Konto bestätigen</p>" +
			"<p>Nutze den folgenden Code, um {email} zu bestätigen.</p>" +
			"<p><strong>{code}</strong></p>" +
			"<p>Der Code ist {validity} gültig.</p>" +
			"<p>Falls du das nicht angefordert hast, ignoriere diese E-Mail.</p>",

		ResetSubject: "Code zum Zurücksetzen des Passworts",
		ResetText:    "Dein Code zum Zurücksetzen des Passworts lautet {code}. Er ist {validity} gültig.\nFalls du das nicht angefordert hast, ignoriere diese E-Mail.",
		ResetHTML: "<p>Passwort zurücksetzen</p>" +
			"<p>Nutze den folgenden Code, um das Passwort für {email} zurückzusetzen.</p>" +
			"<p><strong>{code}</strong></p>" +
			"<p>Der Code ist {validity} gültig.</p>" +
			"<p>Falls du das nicht angefordert hast, ignoriere diese E-Mail.</p>",

		WelcomeSubject: "Willkommen",
		WelcomeText:    "Willkommen! Dein Konto wurde mit der E-Mail-Adresse {email} erstellt.",
		WelcomeHTML: "<p>Willkommen!</p>" +
			"<p>Dein Konto wurde mit der E-Mail-Adresse {email} erstellt.</p>" +
			"<p>Denk daran, deine E-Mail-Adresse zu bestätigen.</p>",

		SignInSubject: "Neue Anmeldung bei deinem Konto",
		SignInText:    "Neue Anmeldung bei {email} am {time} von {ip} ({device}). Warst du das nicht, setze dein Passwort zurück.",
		SignInHTML: "<p>Neue Anmeldung erkannt</p>" +
			"<p>Konto: {email}</p>" +
			"<p>Zeit: {time}</p>" +
			"<p>IP-Adresse: {ip}</p>" +
			"<p>Gerät: {device}</p>" +
			"<p>Warst du das nicht, setze dein Passwort zurück.</p>",

		Minutes:       "Minuten",
		Hours:         "Stunden",
		UnknownIP:     "unbekannte Adresse",
		UnknownDevice: "unbekanntes Gerät",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	if s, ok := emailTranslations[locale]; ok {
		return s
	}
	return emailTranslations[DefaultLocale]
}

// render fills {key} placeholders. HTML bodies get escaped values.
func render(tmpl string, values map[string]string, escape bool) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		if escape {
			v = html.EscapeString(v)
		}
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func content(subject, text, htmlBody string, values map[string]string) EmailContent {
	return EmailContent{
		Subject: subject,
		Text:    render(text, values, false),
		HTML:    render(htmlBody, values, true),
	}
}

// validity renders a TTL as whole hours when it divides evenly, minutes otherwise.
func validity(s emailStrings, ttl time.Duration) string {
	if ttl >= time.Hour && ttl%time.Hour == 0 {
		return strconv.Itoa(int(ttl/time.Hour)) + " " + s.Hours
	}
	minutes := int(ttl / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return strconv.Itoa(minutes) + " " + s.Minutes
}

func VerifyCodeEmail(locale, email, code string, ttl time.Duration) EmailContent {
	s := emailStringsForLocale(locale)
	return content(s.VerifySubject, s.VerifyText, s.VerifyHTML, map[string]string{
		"email":    email,
		"code":     code,
		"validity": validity(s, ttl),
	})
}

func ResetCodeEmail(locale, email, code string, ttl time.Duration) EmailContent {
	s := emailStringsForLocale(locale)
	return content(s.ResetSubject, s.ResetText, s.ResetHTML, map[string]string{
		"email":    email,
		"code":     code,
		"validity": validity(s, ttl),
	})
}

func WelcomeEmail(locale, email string) EmailContent {
	s := emailStringsForLocale(locale)
	return content(s.WelcomeSubject, s.WelcomeText, s.WelcomeHTML, map[string]string{
		"email": email,
	})
}

func SignInAlertEmail(locale, email string, at time.Time, ip, device string) EmailContent {
	s := emailStringsForLocale(locale)
	if strings.TrimSpace(ip) == "" {
		ip = s.UnknownIP
	}
	if strings.TrimSpace(device) == "" {
		device = s.UnknownDevice
	}
	return content(s.SignInSubject, s.SignInText, s.SignInHTML, map[string]string{
		"email":  email,
		"time":   at.UTC().Format(time.RFC1123),
		"ip":     ip,
		"device": device,
	})
}
