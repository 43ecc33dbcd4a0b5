package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"pos/internal/client"
	"pos/internal/config"
	"pos/internal/pos"
	"pos/internal/session"

	"github.com/labstack/gommon/log"
)

// api はログイン後に使う取引サービスの呼び出し。
type api interface {
	client.ProductSource
	pos.TransactionGateway
	Transactions(ctx context.Context) ([]pos.TransactionRecord, error)
	Transaction(ctx context.Context, id string) (pos.TransactionRecord, error)
	Product(ctx context.Context, id string) (pos.Product, error)
	ImageURL(path string) string

	Users(ctx context.Context) ([]client.Profile, error)
	UpdateProfile(ctx context.Context, userID string, p client.Profile) (client.Profile, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// terminal は1台のレジの対話ループ。
type terminal struct {
	sessions  *session.Manager
	authorize func(token string) api
	cfg       config.TerminalConfig
	logger    *log.Logger
	out       io.Writer

	sess     *session.Session
	catalog  *client.Catalog
	register *pos.Register
	api      api
	refund   *pos.RefundSession
	category string
}

func newTerminal(cl *client.Client, sessions *session.Manager, cfg config.TerminalConfig, logger *log.Logger, out io.Writer) *terminal {
	return &terminal{
		sessions:  sessions,
		authorize: func(token string) api { return cl.WithToken(token) },
		cfg:       cfg,
		logger:    logger,
		out:       out,
	}
}

const usage = `commands:
  login <username> <password> <role>   logout
  profile [<name> | <contact>]   passwd <current> <new>   users (admin)
  products [category]   search <text>   info <product_id>
  add <product_id>   remove <product_id>   qty <product_id> <n>
  cart   cancel   pay <name> | <address> | <phone>
  txs   show <transaction_id>
  refund <transaction_id>   toggle <product_id>   rqty <product_id> <n>
  reason <text>   submit   back
  help   quit`

// Run は入力が尽きるか quit まで1行ずつコマンドを処理する。
func (t *terminal) Run(ctx context.Context, in io.Reader) error {
	// 前回のセッションが残っていれば引き継ぐ
	if s, err := t.sessions.Current(ctx); err == nil {
		t.bind(s)
		t.printf("welcome back, %s (%s)\n", s.Name, s.Role)
	} else if !errors.Is(err, session.ErrNoSession) {
		t.logger.Warnj(log.JSON{"msg": "session restore failed", "error": err.Error()})
	}

	sc := bufio.NewScanner(in)
	t.prompt()
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "quit" || line == "exit" {
			return nil
		}
		if line != "" {
			if err := t.exec(ctx, line); err != nil {
				t.printf("error: %v\n", err)
			}
		}
		t.prompt()
	}
	return sc.Err()
}

func (t *terminal) prompt() {
	switch {
	case t.sess == nil:
		t.printf("pos> ")
	case t.refund != nil:
		t.printf("%s refund:%s> ", t.sess.Username, t.refund.Record().ID)
	default:
		t.printf("%s> ", t.sess.Username)
	}
}

func (t *terminal) printf(format string, args ...any) {
	fmt.Fprintf(t.out, format, args...)
}

var (
	errLoginRequired = errors.New("login required")
	errAdminOnly     = errors.New("admin only")
)

func (t *terminal) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch cmd {
	case "help":
		t.printf("%s\n", usage)
		return nil
	case "login":
		if len(args) != 3 {
			return errors.New("usage: login <username> <password> <role>")
		}
		return t.login(ctx, session.Credentials{Username: args[0], Password: args[1], Role: args[2]})
	}

	if t.sess == nil {
		return errLoginRequired
	}

	switch cmd {
	case "logout":
		return t.logout(ctx)
	case "profile":
		return t.profile(ctx, rest)
	case "passwd":
		if len(args) != 2 {
			return errors.New("usage: passwd <current> <new>")
		}
		return t.changePassword(ctx, args[0], args[1])
	case "users":
		return t.users(ctx)
	case "products":
		return t.products(ctx, rest)
	case "info":
		return t.info(ctx, rest)
	case "search":
		return t.search(ctx, rest)
	case "add":
		return t.add(ctx, rest)
	case "remove":
		t.register.Remove(rest)
		t.printCart()
	case "qty":
		if len(args) != 2 {
			return errors.New("usage: qty <product_id> <n>")
		}
		t.register.SetQuantity(args[0], args[1])
		t.printCart()
	case "cart":
		t.printCart()
	case "cancel":
		t.register.Cancel()
		t.printf("order cancelled\n")
	case "pay":
		return t.pay(ctx, rest)
	case "txs":
		return t.transactions(ctx)
	case "show":
		rec, err := t.api.Transaction(ctx, rest)
		if err != nil {
			return err
		}
		t.printReceipt(rec)
	case "refund":
		return t.openRefund(ctx, rest)
	case "toggle", "rqty", "reason", "submit", "back":
		return t.refundCommand(ctx, cmd, rest, args)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (t *terminal) login(ctx context.Context, cred session.Credentials) error {
	s, err := t.sessions.Login(ctx, cred)
	if err != nil {
		return err
	}
	t.bind(s)
	t.printf("logged in as %s (%s), home %s\n", s.Name, s.Role, s.HomePath())
	return nil
}

// bind はセッションに紐づく部品を作り直す。カートは新しくなる。
func (t *terminal) bind(s session.Session) {
	t.sess = &s
	t.api = t.authorize(s.Token)
	t.catalog = client.NewCatalog(t.api, t.cfg.CatalogTTL, t.logger)
	t.register = pos.NewRegister(pos.NewCheckout(t.api, t.logger), s.Cashier())
	t.refund = nil
	t.category = ""
}

func (t *terminal) logout(ctx context.Context) error {
	if err := t.sessions.Logout(ctx); err != nil {
		return err
	}
	t.sess, t.api, t.catalog, t.register, t.refund = nil, nil, nil, nil, nil
	t.printf("logged out\n")
	return nil
}

// profile は引数なしなら表示、"name | contact" なら更新してセッションにも反映する。
func (t *terminal) profile(ctx context.Context, rest string) error {
	if rest == "" {
		t.printf("%s  %s  %s  %s\n", t.sess.Username, t.sess.Name, t.sess.Contact, t.sess.Role)
		return nil
	}
	name, contact, _ := strings.Cut(rest, "|")
	p := client.Profile{
		Username: t.sess.Username,
		Name:     strings.TrimSpace(name),
		Contact:  strings.TrimSpace(contact),
	}
	if p.Name == "" {
		p.Name = t.sess.Name
	}
	if p.Contact == "" {
		p.Contact = t.sess.Contact
	}

	out, err := t.api.UpdateProfile(ctx, t.sess.UserID, p)
	if err != nil {
		return err
	}
	t.sess.Name, t.sess.Contact = out.Name, out.Contact
	if err := t.sessions.Replace(ctx, *t.sess); err != nil {
		return err
	}
	t.printf("profile updated: %s  %s\n", out.Name, out.Contact)
	return nil
}

// changePassword の後は今のトークンが使えないのでログアウトする。
func (t *terminal) changePassword(ctx context.Context, current, next string) error {
	if err := t.api.ChangePassword(ctx, t.sess.UserID, current, next); err != nil {
		return err
	}
	t.printf("password changed, please log in again\n")
	return t.logout(ctx)
}

func (t *terminal) users(ctx context.Context) error {
	if !t.sess.IsAdmin() {
		return errAdminOnly
	}
	list, err := t.api.Users(ctx)
	if err != nil {
		return err
	}
	for _, u := range list {
		t.printf("%-36s  %-16s  %-24s  %-8s  %s\n", u.ID, u.Username, u.Name, u.Role, u.Contact)
	}
	return nil
}

func (t *terminal) info(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: info <product_id>")
	}
	p, err := t.api.Product(ctx, id)
	if err != nil {
		return err
	}
	t.printf("%s  %s\n", p.ID, p.Name)
	t.printf("category %s  price %s  stock %d\n", p.Category, pos.FormatCurrency(p.SellingPrice), pos.CoerceQuantity(p.QuantityInStock))
	if u := t.api.ImageURL(p.Image); u != "" {
		t.printf("image %s\n", u)
	}
	return nil
}

func (t *terminal) products(ctx context.Context, category string) error {
	items, err := t.catalog.Products(ctx, category)
	if err != nil {
		return err
	}
	t.category = category
	t.printProducts(items)
	return nil
}

func (t *terminal) search(ctx context.Context, q string) error {
	items, err := t.catalog.Search(ctx, t.category, q)
	if err != nil {
		return err
	}
	t.printProducts(items)
	return nil
}

func (t *terminal) printProducts(items []pos.Product) {
	if len(items) == 0 {
		t.printf("no products\n")
		return
	}
	for _, p := range items {
		t.printf("%-36s  %-24s  %-12s  %12s  stock %d",
			p.ID, p.Name, p.Category, pos.FormatCurrency(p.SellingPrice), pos.CoerceQuantity(p.QuantityInStock))
		if u := t.api.ImageURL(p.Image); u != "" {
			t.printf("  %s", u)
		}
		t.printf("\n")
	}
}

func (t *terminal) add(ctx context.Context, id string) error {
	p, ok, err := t.catalog.Find(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("product %q not found", id)
	}
	t.register.Add(p)
	t.printCart()
	return nil
}

func (t *terminal) printCart() {
	c := t.register.Cart()
	if c.IsEmpty() {
		t.printf("cart is empty\n")
		return
	}
	for _, l := range c.Lines() {
		t.printf("%-24s  %4d x %12s = %12s\n",
			l.Product.Name, l.Quantity, pos.FormatCurrency(l.Product.SellingPrice), pos.FormatCurrency(l.LineTotal()))
	}
	if over := c.ExceedsStock(); len(over) > 0 {
		t.printf("warning: over stock: %s\n", strings.Join(over, ", "))
	}
	t.printf("subtotal %s\n", pos.FormatCurrency(pos.Subtotal(c)))
}

// pay の引数は "name | address | phone"。
func (t *terminal) pay(ctx context.Context, rest string) error {
	var customer pos.Customer
	parts := strings.Split(rest, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	switch len(parts) {
	case 3:
		customer.Phone = parts[2]
		fallthrough
	case 2:
		customer.Address = parts[1]
		fallthrough
	case 1:
		customer.Name = parts[0]
	}

	rec, err := t.register.Pay(ctx, customer)
	if err != nil {
		if se, ok := pos.AsSubmissionError(err); ok && se.Temporary() {
			return fmt.Errorf("%w (cart kept, retry pay)", err)
		}
		return err
	}
	// 在庫が変わったので一覧を取り直す
	t.catalog.Invalidate()
	t.printf("transaction %s completed\n", rec.ID)
	t.printReceipt(rec)
	return nil
}

func (t *terminal) transactions(ctx context.Context) error {
	recs, err := t.api.Transactions(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		t.printf("no transactions\n")
		return nil
	}
	for _, r := range recs {
		t.printf("%-36s  %-16s  %-18s  %12s  %s\n",
			r.ID, pos.FormatReceiptDate(r.CreatedAt), r.Status, pos.FormatCurrency(r.TotalPrice), r.Cashier)
	}
	return nil
}

func (t *terminal) printReceipt(rec pos.TransactionRecord) {
	t.printf("receipt %s  %s  cashier %s\n", rec.ID, pos.FormatReceiptDate(rec.CreatedAt), rec.Cashier)
	if rec.Customer.Name != "" {
		t.printf("bill to: %s %s %s\n", rec.Customer.Name, rec.Customer.Address, rec.Customer.Phone)
	}
	items := map[string]pos.TransactionItem{}
	for _, it := range rec.Items {
		items[it.Product.ID] = it
	}
	for _, l := range pos.ReceiptLines(rec) {
		t.printf("  %-36s  %-24s  %4d x %12s = %12s", l.ProductID, l.Name, l.Quantity, l.UnitPriceText, l.LineTotalText)
		if r := items[l.ProductID].RefundedQuantity.Int(); r > 0 {
			t.printf("  (refunded %d)", r)
		}
		if u := t.api.ImageURL(l.Image); u != "" {
			t.printf("  %s", u)
		}
		t.printf("\n")
	}
	t.printf("total %s  status %s\n", pos.FormatCurrency(rec.TotalPrice), rec.Status)
}

func (t *terminal) openRefund(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("usage: refund <transaction_id>")
	}
	rec, err := t.api.Transaction(ctx, id)
	if err != nil {
		return err
	}
	rs := pos.NewRefundSession(rec, t.api, t.sess.Cashier(), t.logger)
	if err := rs.Open(); err != nil {
		return err
	}
	t.refund = rs
	t.printReceipt(rec)
	t.printf("toggle items, set a reason, then submit (back to leave)\n")
	return nil
}

func (t *terminal) refundCommand(ctx context.Context, cmd, rest string, args []string) error {
	if t.refund == nil {
		return errors.New("no refund open (refund <transaction_id>)")
	}

	var err error
	switch cmd {
	case "toggle":
		err = t.refund.Toggle(rest)
	case "rqty":
		if len(args) != 2 {
			return errors.New("usage: rqty <product_id> <n>")
		}
		err = t.refund.SetQuantity(args[0], args[1])
	case "reason":
		err = t.refund.SetReason(rest)
	case "back":
		if err := t.refund.Cancel(); err != nil && !errors.Is(err, pos.ErrRefundState) {
			return err
		}
		t.refund = nil
		return nil
	case "submit":
		conf, err := t.refund.Submit(ctx)
		if err != nil {
			if pos.IsValidation(err) {
				return err
			}
			return fmt.Errorf("%w (selection kept, submit again)", err)
		}
		t.printf("refund %s: %s refunded, transaction now %s\n", conf.RefundID, pos.FormatCurrency(conf.Amount), conf.Status)
		t.refund = nil
		t.catalog.Invalidate()
		return nil
	}
	if err != nil {
		return err
	}

	sel := t.refund.Selection()
	ids := make([]string, 0, len(sel))
	for id, q := range sel {
		if q != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		t.printf("  %s x %d\n", id, *sel[id])
	}
	t.printf("refund total %s\n", pos.FormatCurrency(t.refund.SelectedTotal()))
	return nil
}
