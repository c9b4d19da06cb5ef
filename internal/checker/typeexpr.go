package checker

import (
	"fmt"
	"strings"

	"fu/internal/ast"
	"fu/internal/scope"
	"fu/internal/types"
)

// ResolveTypeExpr turns a syntax-level type expression into a concrete
// *types.Type, applying each modifier left to right.
func ResolveTypeExpr(b *types.Builtins, te *ast.TypeExpr, s *scope.Scope) (*types.Type, error) {
	m, _ := s.InScope(te.Name)
	decl, ok := m.(*scope.VariableDecl)
	if !ok {
		return nil, fmt.Errorf("type %q has not been defined", te.Name)
	}
	base := decl.Type
	if base.Kind == types.KindStatic {
		base = base.StaticOf()
	}
	return applyModifiers(b, base, te.Modifiers, s)
}

func applyModifiers(b *types.Builtins, base *types.Type, mods []ast.TypeModifier, s *scope.Scope) (*types.Type, error) {
	ret := base
	for _, mod := range mods {
		switch mod.Kind {
		case ast.ModArrayDef:
			if b.Array.GenericParams == nil {
				return nil, fmt.Errorf("builtin Array is missing its generic parameter")
			}
			ret = b.Array.Instantiate(map[string]*types.Type{b.ArrayParam.Name: ret})

		case ast.ModParamList:
			params := make([]*types.Type, 0, len(mod.Params))
			for _, p := range mod.Params {
				pt, err := ResolveTypeExpr(b, p, s)
				if err != nil {
					return nil, err
				}
				params = append(params, pt)
			}
			ret = &types.Type{
				Kind:     types.KindComposed,
				Name:     callableTypeName(ret, params),
				Callable: &types.Callable{Params: params, Return: ret},
			}

		case ast.ModGenericParamList:
			if ret.GenericParams == nil {
				return nil, fmt.Errorf("%s is not a generic type", ret.Name)
			}
			names := ret.GenericParams.Names()
			assign := map[string]*types.Type{}
			for i, argName := range mod.GenericNames {
				if i >= len(names) {
					break
				}
				if m, _ := s.InScope(argName); m != nil {
					if decl, ok := m.(*scope.VariableDecl); ok {
						assign[names[i]] = decl.Type
						continue
					}
				}
				assign[names[i]] = types.MarkerType(&types.GenericParamMarker{Name: argName})
			}
			ret = ret.Instantiate(assign)

		default:
			return nil, fmt.Errorf("checker: unknown type modifier kind %d", mod.Kind)
		}
	}
	return ret, nil
}

func callableTypeName(ret *types.Type, params []*types.Type) string {
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	return ret.Name + "(" + strings.Join(names, ", ") + ")"
}
