package notification

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Shop — реквизиты магазина, которые попадают в письма.
type Shop struct {
	Name    string
	Address string
	Hours   string
}

// DefaultShop — реквизиты по умолчанию.
var DefaultShop = Shop{
	Name:    "L'Étoile du Nord",
	Address: "183 Rue des Postes, 59000 Lille",
	Hours:   "08:30 - 20:00",
}

// Message — готовое к отправке содержимое.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

type templateData struct {
	Shop     Shop
	Order    domain.Order
	Items    []domain.OrderLineDetail
	Ref      string
	Customer string
}

var funcs = template.FuncMap{
	"euros":     euros,
	"qty":       quantity,
	"longDate":  longDate,
	"shortDate": shortDate,
	"payment":   paymentLabel,
}

var staffText = template.Must(template.New("staff").Funcs(funcs).Parse(`Nouvelle commande reçue !

Numéro: {{.Order.ID}}
Client: {{.Customer}}
Email: {{.Order.Customer.Email}}

Produits commandés :
{{range .Items}}  - {{.ProductName}}: {{qty .Quantity}} {{.Unit}} × {{euros .UnitPrice}} = {{euros .Subtotal}}
{{end}}
Total: {{euros .Order.TotalAmount}}

RETRAIT EN MAGASIN :
Date: {{longDate .Order.PickupDate}}
Heure: {{.Order.PickupTime}}
Lieu: {{.Shop.Address}}
{{if .Order.Notes}}
Notes du client: {{.Order.Notes}}
{{end}}
MÉTHODE DE PAIEMENT: {{payment .Order}}

Veuillez préparer cette commande pour le retrait prévu.
`))

var customerText = template.Must(template.New("customer").Funcs(funcs).Parse(`Merci pour votre commande, {{.Customer}} !

Numéro de commande: {{.Order.ID}}

RÉCAPITULATIF:
{{range .Items}}- {{.ProductName}}: {{qty .Quantity}} {{.Unit}} × {{euros .UnitPrice}} = {{euros .Subtotal}}
{{end}}
TOTAL: {{euros .Order.TotalAmount}}

RETRAIT EN MAGASIN:
{{longDate .Order.PickupDate}} à {{.Order.PickupTime}}

LIEU DE RETRAIT:
{{.Shop.Address}}

PAIEMENT:
{{payment .Order}}

Horaires: {{.Shop.Hours}}

Cordialement,
L'équipe de {{.Shop.Name}}
`))

var customerHTML = htmltemplate.Must(htmltemplate.New("customer-html").Funcs(htmltemplate.FuncMap(funcs)).Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="UTF-8"><title>Confirmation de commande - {{.Shop.Name}}</title></head>
<body style="font-family: Arial, sans-serif; color: #1a3a32; background-color: #fdfcf9;">
  <h1 style="text-transform: uppercase; letter-spacing: 4px;">{{.Shop.Name}}</h1>
  <p>Merci pour votre commande, <strong>{{.Customer}}</strong> !</p>
  <p>Numéro de commande : <code>{{.Order.ID}}</code></p>
  <table role="presentation" style="width: 100%; border-collapse: collapse;">
    <thead><tr><th align="left">Produit</th><th>Quantité</th><th align="right">Prix</th></tr></thead>
    <tbody>
    {{range .Items}}<tr><td>{{.ProductName}}</td><td align="center">{{qty .Quantity}} {{.Unit}}</td><td align="right">{{euros .Subtotal}}</td></tr>
    {{end}}</tbody>
    <tfoot><tr><td colspan="2" align="right"><strong>TOTAL</strong></td><td align="right"><strong>{{euros .Order.TotalAmount}}</strong></td></tr></tfoot>
  </table>
  <p><strong>Retrait en magasin :</strong> {{longDate .Order.PickupDate}} à {{.Order.PickupTime}}</p>
  <p><strong>Lieu :</strong> {{.Shop.Address}}</p>
  <p><strong>Paiement :</strong> {{payment .Order}}</p>
  {{if .Order.Notes}}<p><strong>Notes :</strong> <em>{{.Order.Notes}}</em></p>{{end}}
  <p>Horaires : {{.Shop.Hours}}</p>
</body>
</html>
`))

var staffSMS = template.Must(template.New("sms").Funcs(funcs).Parse(`NOUVELLE COMMANDE #{{.Ref}}

Client: {{.Customer}}
{{if .Order.Customer.Email}}Email: {{.Order.Customer.Email}}
{{end}}
Produits:
{{range .Items}}{{.ProductName}}: {{qty .Quantity}} {{.Unit}} ({{euros .Subtotal}})
{{end}}
Total: {{euros .Order.TotalAmount}}
Paiement: {{if eq .Order.PaymentMethod "online"}}En ligne{{else}}En magasin{{end}}

Retrait: {{shortDate .Order.PickupDate}} à {{.Order.PickupTime}}
{{if .Order.Notes}}
Notes: {{.Order.Notes}}
{{end}}
{{.Shop.Name}}`))

func newTemplateData(shop Shop, details domain.OrderDetails) templateData {
	return templateData{
		Shop:     shop,
		Order:    details.Order,
		Items:    details.Items,
		Ref:      details.Order.ShortRef(),
		Customer: titleName(details.Order.Customer.FullName()),
	}
}

// StaffEmail формирует письмо для магазина.
func StaffEmail(shop Shop, details domain.OrderDetails) (Message, error) {
	data := newTemplateData(shop, details)
	var text bytes.Buffer
	if err := staffText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: "Nouvelle commande #" + details.Order.ID + " - " + data.Customer,
		HTML:    "<pre>" + htmltemplate.HTMLEscapeString(text.String()) + "</pre>",
		Text:    text.String(),
	}, nil
}

// CustomerEmail формирует подтверждение для покупателя.
func CustomerEmail(shop Shop, details domain.OrderDetails) (Message, error) {
	data := newTemplateData(shop, details)
	var text, html bytes.Buffer
	if err := customerText.Execute(&text, data); err != nil {
		return Message{}, err
	}
	if err := customerHTML.Execute(&html, data); err != nil {
		return Message{}, err
	}
	return Message{
		Subject: "Confirmation de votre commande - " + shop.Name,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// StaffSMS формирует SMS для магазина.
func StaffSMS(shop Shop, details domain.OrderDetails) (string, error) {
	var buf bytes.Buffer
	if err := staffSMS.Execute(&buf, newTemplateData(shop, details)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
