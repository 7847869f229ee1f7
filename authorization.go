package mediator

import "context"

// Restricted — опциональный интерфейс типа запроса, объявляющий роли,
// хотя бы одной из которых должен обладать принципал вызова.
type Restricted interface {
	RequiredRoles() []string
}

// authorizationIntercept проверяет роли принципала до передачи запроса
// обработчику. Запрос без интерфейса Restricted пропускается без проверки.
type authorizationIntercept struct{}

// NewAuthorizationIntercept создает перехватчик авторизации по ролям.
// Он опирается на снимок принципала в RequestContext, установленный через
// WithPrincipal; отсутствие принципала у ограниченного запроса — отказ.
func NewAuthorizationIntercept() Intercept {
	return &authorizationIntercept{}
}

// Handle реализует интерфейс Intercept.
func (i *authorizationIntercept) Handle(ctx context.Context, rc *RequestContext, next Next) (any, error) {
	restricted, ok := rc.Request.(Restricted)
	if !ok {
		return next()
	}

	roles := restricted.RequiredRoles()
	if len(roles) == 0 {
		return next()
	}

	if rc.Principal == nil {
		return nil, &AuthorizationError{RequestType: rc.RequestType}
	}
	for _, role := range roles {
		if rc.Principal.HasRole(role) {
			return next()
		}
	}

	return nil, &AuthorizationError{
		RequestType: rc.RequestType,
		Subject:     rc.Principal.Subject,
		Roles:       roles,
	}
}
